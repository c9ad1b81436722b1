package receipt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/radlabs/rampd/internal/domain"
)

// DefaultNoteBudget is the hard byte budget for the serialized on-chain note.
const DefaultNoteBudget = 1024

// compactNote is the bounded projection of a full receipt. The pointer
// fields k/v/h are always present; everything else is droppable.
type compactNote struct {
	Namespace string `json:"k"`
	Version   int    `json:"v"`
	Digest    string `json:"h"`
	USD       string `json:"usd,omitempty"`
	USDC      string `json:"usdc,omitempty"`
	Symbol    string `json:"sym,omitempty"`
	Price     string `json:"px,omitempty"`
	To        string `json:"to,omitempty"`
	OrderID   string `json:"oid,omitempty"`
}

// dropOrder is the fixed priority in which variable fields are removed when
// the serialized note exceeds the budget: least identifying first.
var dropOrder = []func(*compactNote){
	func(n *compactNote) { n.Price = "" },
	func(n *compactNote) { n.Symbol = "" },
	func(n *compactNote) { n.USDC = "" },
	func(n *compactNote) { n.USD = "" },
	func(n *compactNote) { n.To = "" },
	func(n *compactNote) { n.OrderID = "" },
}

// CompactNote derives the on-chain payload for a receipt whose full digest is
// already computed. The returned bytes are compact JSON and never exceed
// budget; the digest prefix survives every trimming step, so the full record
// stays locatable no matter how much was dropped.
func CompactNote(r *domain.Receipt, digest [DigestSize]byte, budget int) ([]byte, error) {
	if budget <= 0 {
		budget = DefaultNoteBudget
	}

	note := compactNote{
		Namespace: domain.NoteNamespace,
		Version:   domain.NoteSchemaVersion,
		Digest:    hex.EncodeToString(digest[:PrefixSize]),
		USD:       r.Payment.USD,
		USDC:      r.Payment.USDCBought,
		Symbol:    r.Exchange.Symbol,
		Price:     r.Exchange.EffectivePrice,
		To:        r.Recipient.Wallet,
		OrderID:   r.Payment.OrderID,
	}

	b, err := json.Marshal(note)
	if err != nil {
		return nil, fmt.Errorf("encode note: %w", err)
	}
	if len(b) <= budget {
		return b, nil
	}

	for _, drop := range dropOrder {
		drop(&note)
		if b, err = json.Marshal(note); err != nil {
			return nil, fmt.Errorf("encode note: %w", err)
		}
		if len(b) <= budget {
			return b, nil
		}
	}

	// All variable fields are gone, so this is the minimal pointer-only form
	// {k,v,h}. It fits any sane budget; a budget too small even for that is a
	// configuration error.
	if len(b) > budget {
		return nil, fmt.Errorf("note budget %d too small for pointer form (%d bytes)", budget, len(b))
	}
	return b, nil
}

// ParseNote decodes an on-chain note into a generic map, returning ok=false
// when the payload is not one of ours.
func ParseNote(raw []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	if ns, _ := m["k"].(string); ns != domain.NoteNamespace {
		return nil, false
	}
	return m, true
}

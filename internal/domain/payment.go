package domain

// PaymentOrder is a payment-processor checkout order: created first, approved
// by the payer out-of-band, then captured by this service.
type PaymentOrder struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ApproveURL string `json:"approve_url,omitempty"`
}

// Payout is an asynchronous payment-processor disbursement. BatchStatus is
// the submission status; final settlement happens on the processor's side.
type Payout struct {
	BatchID     string `json:"batch_id"`
	BatchStatus string `json:"batch_status"`
}

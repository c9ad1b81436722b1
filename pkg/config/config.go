package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Exchange ExchangeConfig `yaml:"exchange"`
	PayPal   PayPalConfig   `yaml:"paypal"`
	Asset    AssetConfig    `yaml:"asset"`
	Ramp     RampConfig     `yaml:"ramp"`
	Security SecurityConfig `yaml:"security"`
	WS       WSConfig       `yaml:"websocket"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	DBName   string `yaml:"name"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN builds the postgres connection string for the pool.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type LedgerConfig struct {
	AlgodURL         string        `yaml:"algod_url"`
	AlgodToken       string        `yaml:"algod_token"`
	MinFlatFee       uint64        `yaml:"min_flat_fee"`
	ConfirmPolls     int           `yaml:"confirm_polls"`
	ConfirmInterval  time.Duration `yaml:"confirm_interval"`
	TreasuryMnemonic string        `yaml:"treasury_mnemonic"`
	RegistryAppID    uint64        `yaml:"registry_app_id"`
	FundAmount       uint64        `yaml:"fund_amount"`
}

type IndexerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	Limit   int           `yaml:"limit"`
}

type ExchangeConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	APISecret        string `yaml:"api_secret"`
	Symbol           string `yaml:"symbol"`
	Timeout          int    `yaml:"timeout"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryBackoffBase int    `yaml:"retry_backoff_base"`
	RecvWindowMs     int64  `yaml:"recv_window_ms"`
}

type PayPalConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   uint          `yaml:"max_retries"`
}

type AssetConfig struct {
	Name     string `yaml:"name"`
	UnitName string `yaml:"unit_name"`
	Decimals uint32 `yaml:"decimals"`
	Total    uint64 `yaml:"total"`
}

type RampConfig struct {
	NoteBudgetBytes int `yaml:"note_budget_bytes"`
}

type SecurityConfig struct {
	APIKey         string `yaml:"api_key"`
	MnemonicEncKey string `yaml:"mnemonic_enc_key"`
}

type WSConfig struct {
	ReadBufferSize  int  `yaml:"read_buffer_size"`
	WriteBufferSize int  `yaml:"write_buffer_size"`
	CheckOrigin     bool `yaml:"check_origin"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var config Config
	configData, err := os.ReadFile("./config.yaml")
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// applyEnv lets secrets come from the environment instead of config.yaml.
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("BINANCE_SYMBOL"); v != "" {
		c.Exchange.Symbol = v
	}
	if v := os.Getenv("PAYPAL_CLIENT_ID"); v != "" {
		c.PayPal.ClientID = v
	}
	if v := os.Getenv("PAYPAL_CLIENT_SECRET"); v != "" {
		c.PayPal.ClientSecret = v
	}
	if v := os.Getenv("TREASURY_MNEMONIC"); v != "" {
		c.Ledger.TreasuryMnemonic = v
	}
	if v := os.Getenv("MNEMONIC_ENC_KEY"); v != "" {
		c.Security.MnemonicEncKey = v
	}
	if v := os.Getenv("RAMPD_API_KEY"); v != "" {
		c.Security.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Ledger.MinFlatFee == 0 {
		c.Ledger.MinFlatFee = 1000
	}
	if c.Ledger.ConfirmPolls == 0 {
		c.Ledger.ConfirmPolls = 20
	}
	if c.Ledger.ConfirmInterval == 0 {
		c.Ledger.ConfirmInterval = 500 * time.Millisecond
	}
	if c.Ledger.FundAmount == 0 {
		c.Ledger.FundAmount = 5_000_000 // 5 Algos for fresh LocalNet wallets
	}
	if c.Asset.Name == "" {
		c.Asset.Name = "USDC-DEV"
	}
	if c.Asset.UnitName == "" {
		c.Asset.UnitName = "USDCd"
	}
	if c.Asset.Decimals == 0 {
		c.Asset.Decimals = 6
	}
	if c.Asset.Total == 0 {
		c.Asset.Total = 10_000_000_000_000
	}
	if c.Ramp.NoteBudgetBytes == 0 {
		c.Ramp.NoteBudgetBytes = 1024
	}
	if c.Indexer.Limit == 0 {
		c.Indexer.Limit = 50
	}
	if c.Indexer.Timeout == 0 {
		c.Indexer.Timeout = 20 * time.Second
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 10000
	}
	if c.PayPal.Timeout == 0 {
		c.PayPal.Timeout = 20 * time.Second
	}
	if c.PayPal.MaxRetries == 0 {
		c.PayPal.MaxRetries = 3
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all tunable parameters for the wallet engine.
// The node address is not here: it is the single positional startup argument.
type Config struct {
	WalletPath  string `envconfig:"SNAP_WALLET_PATH"`
	NodeTimeout int    `envconfig:"SNAP_NODE_TIMEOUT_SECONDS" default:"15"`
	Debug       bool   `envconfig:"SNAP_DEBUG" default:"false"`

	// scrypt cost for the PIN KDF. Deliberately expensive: the PIN space is
	// only 10^6, so the KDF plus unlock rate limiting are the security budget.
	ScryptN      int `envconfig:"SNAP_SCRYPT_N" default:"262144"`
	ScryptR      int `envconfig:"SNAP_SCRYPT_R" default:"8"`
	ScryptP      int `envconfig:"SNAP_SCRYPT_P" default:"1"`
	ScryptKeyLen int `envconfig:"SNAP_SCRYPT_KEYLEN" default:"32"`

	// Unlock rate limiting: a burst of attempts, then refill per minute.
	UnlockBurst  int `envconfig:"SNAP_UNLOCK_BURST" default:"5"`
	UnlockPerMin int `envconfig:"SNAP_UNLOCK_PER_MINUTE" default:"2"`

	// Fee policy: fee = base + perInput*nIn + perOutput*nOut, all in nano.
	FeeBase      uint64 `envconfig:"SNAP_FEE_BASE_NANO" default:"1000"`
	FeePerInput  uint64 `envconfig:"SNAP_FEE_PER_INPUT_NANO" default:"500"`
	FeePerOutput uint64 `envconfig:"SNAP_FEE_PER_OUTPUT_NANO" default:"250"`

	// Change below this folds into the fee instead of becoming an output.
	DustThreshold uint64 `envconfig:"SNAP_DUST_NANO" default:"1000"`

	// Pending-spend markers expire after this session TTL even if the node
	// never shows the inputs as spent.
	PendingTTLMinutes int `envconfig:"SNAP_PENDING_TTL_MINUTES" default:"30"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetWalletPath returns the wallet store path, defaulting to
// $HOME/.snap-wallet.json when SNAP_WALLET_PATH is unset.
func GetWalletPath() (string, error) {
	if p := Get().WalletPath; p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".snap-wallet.json"), nil
}

// GetNodeTimeout returns the node request timeout.
func GetNodeTimeout() time.Duration {
	return time.Duration(Get().NodeTimeout) * time.Second
}

// GetPendingTTL returns how long pending-spend markers survive without the
// node confirming the spend.
func GetPendingTTL() time.Duration {
	return time.Duration(Get().PendingTTLMinutes) * time.Minute
}

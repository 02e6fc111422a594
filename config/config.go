package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries all runtime configuration, supplied by environment
// variables with the AUDITFLOW_ prefix.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Chain node and contract endpoints.
	NodeURL        string `envconfig:"NODE_URL" required:"true"`
	EscrowContract string `envconfig:"ESCROW_CONTRACT" required:"true"`
	VotingAddress  string `envconfig:"VOTING_ADDRESS" required:"true"`
	// SigningKey is the server-side key used to sign submitted extrinsics.
	SigningKey string `envconfig:"SIGNING_KEY" required:"true"`

	Arbiter1 string `envconfig:"ARBITER_1" required:"true"`
	Arbiter2 string `envconfig:"ARBITER_2" required:"true"`
	Arbiter3 string `envconfig:"ARBITER_3" required:"true"`
	Arbiter4 string `envconfig:"ARBITER_4" required:"true"`
	Arbiter5 string `envconfig:"ARBITER_5" required:"true"`

	// ChainCallTimeout bounds every node query; ChainSendTimeout bounds the
	// submit-and-confirm protocol for state-changing transactions.
	ChainCallTimeout time.Duration `envconfig:"CHAIN_CALL_TIMEOUT" default:"30s"`
	ChainSendTimeout time.Duration `envconfig:"CHAIN_SEND_TIMEOUT" default:"2m"`

	// SweepInterval controls how often expired arbitrations are force-resolved.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("auditflow", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}
	return &cfg, nil
}

// ArbiterAddresses returns the fixed five-arbiter pool in declaration order.
func (c *Config) ArbiterAddresses() [5]string {
	return [5]string{c.Arbiter1, c.Arbiter2, c.Arbiter3, c.Arbiter4, c.Arbiter5}
}

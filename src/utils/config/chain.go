package config

import (
	"time"

	"github.com/spf13/viper"
)

// Chain is the RPC endpoint of one blockchain node.
// Client chain and service chain are independent endpoints with independent credentials.
type Chain struct {
	Host    string
	User    string
	Pass    string
	Timeout time.Duration
	RateRps int
	RateCap int

	// Expected genesis hash, checked once at startup. Empty disables the check.
	GenesisHash string

	// Challenge asset identifiers, only meaningful for the client chain
	Asset string
}

func setClientChainDefaults() {
	viper.SetDefault("ClientChain.Host", "http://127.0.0.1:5555")
	viper.SetDefault("ClientChain.Timeout", "30s")
	viper.SetDefault("ClientChain.RateRps", "10")
	viper.SetDefault("ClientChain.RateCap", "20")
	viper.SetDefault("ClientChain.Asset", "CHALLENGE")
}

func setServiceChainDefaults() {
	viper.SetDefault("ServiceChain.Host", "http://127.0.0.1:7043")
	viper.SetDefault("ServiceChain.Timeout", "30s")
	viper.SetDefault("ServiceChain.RateRps", "10")
	viper.SetDefault("ServiceChain.RateCap", "20")
}

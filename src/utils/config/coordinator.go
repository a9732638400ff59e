package config

import (
	"time"

	"github.com/spf13/viper"
)

type Coordinator struct {
	// Address the guardnode response listener binds to
	ListenAddress string

	// How often the service chain height is polled
	PollerInterval time.Duration

	// How often a new challenge is created for an active request, in blocks
	ChallengeFrequency int64

	// How long responses to a challenge are accepted, in blocks
	ChallengeDuration int64

	// Max number of concurrently handled guardnode submissions
	ListenerNumWorkers int

	// Size and flush interval of the request/bid snapshot batcher
	StoreBatchSize     int
	StoreFlushInterval time.Duration

	// Backoff applied to chain RPC calls
	ChainBackoffMaxInterval time.Duration
}

func setCoordinatorDefaults() {
	viper.SetDefault("Coordinator.ListenAddress", ":9999")
	viper.SetDefault("Coordinator.PollerInterval", "10s")
	viper.SetDefault("Coordinator.ChallengeFrequency", "60")
	viper.SetDefault("Coordinator.ChallengeDuration", "30")
	viper.SetDefault("Coordinator.ListenerNumWorkers", "50")
	viper.SetDefault("Coordinator.StoreBatchSize", "100")
	viper.SetDefault("Coordinator.StoreFlushInterval", "5s")
	viper.SetDefault("Coordinator.ChainBackoffMaxInterval", "30s")
}

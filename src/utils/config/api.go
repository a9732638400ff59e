package config

import (
	"time"

	"github.com/spf13/viper"
)

type Api struct {
	// Address the query API binds to
	ListenAddress string

	// Basic auth credentials, empty user disables auth
	User string
	Pass string

	RequestTimeout time.Duration
}

func setApiDefaults() {
	viper.SetDefault("Api.ListenAddress", ":3333")
	viper.SetDefault("Api.RequestTimeout", "30s")
}

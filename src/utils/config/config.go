package config

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config stores global configuration
type Config struct {
	// Is development mode on
	IsDevelopment bool

	// REST address serving health, state and prometheus metrics
	MonitorListenAddress string

	// Maximum time the coordinator will be closing before stop is forced
	StopTimeout time.Duration

	// Logging level
	LogLevel string

	Coordinator  Coordinator
	Api          Api
	ClientChain  Chain
	ServiceChain Chain
	Database     Database
	Profiler     Profiler
}

func setDefaults() {
	viper.SetDefault("IsDevelopment", "false")
	viper.SetDefault("MonitorListenAddress", ":7777")
	viper.SetDefault("LogLevel", "DEBUG")
	viper.SetDefault("StopTimeout", "30s")

	setCoordinatorDefaults()
	setApiDefaults()
	setClientChainDefaults()
	setServiceChainDefaults()
	setDatabaseDefaults()
	setProfilerDefaults()
}

func Default() (config *Config) {
	config, _ = Load("")
	return
}

// Visits every field and registers an upper snake case ENV name for it.
// Works with embedded structs.
func BindEnv(path []string, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		key := strings.Join(path, ".")
		env := "COORDINATOR_" + strcase.ToScreamingSnake(strings.Join(path, "_"))
		err := viper.BindEnv(key, env)
		if err != nil {
			panic(err)
		}
	} else {
		for i := 0; i < val.NumField(); i++ {
			newPath := make([]string, len(path))
			copy(newPath, path)
			newPath = append(newPath, val.Type().Field(i).Name)
			BindEnv(newPath, val.Field(i))
		}
	}
}

func defaultDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Load configuration from file and env
func Load(filename string) (config *Config, err error) {
	viper.SetConfigType("json")

	setDefaults()

	BindEnv([]string{}, reflect.ValueOf(Config{}))

	// Empty filename means we use default values
	if filename != "" {
		var content []byte
		/* #nosec */
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		err = viper.ReadConfig(bytes.NewBuffer(content))
		if err != nil {
			return nil, err
		}
	}

	config = new(Config)
	err = viper.Unmarshal(&config, defaultDecodeHook())
	if err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return
}

// Startup checks on values that can't be repaired at runtime
func (self *Config) validate() (err error) {
	if self.ClientChain.GenesisHash != "" && !isHashString(self.ClientChain.GenesisHash) {
		return fmt.Errorf("config: client chain genesis hash must be a hexadecimal string of length 64")
	}
	if self.Coordinator.ChallengeFrequency <= 0 {
		return fmt.Errorf("config: challenge frequency must be a positive number of blocks")
	}
	if self.Coordinator.ChallengeDuration <= 0 {
		return fmt.Errorf("config: challenge duration must be a positive number of blocks")
	}
	return nil
}

func isHashString(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

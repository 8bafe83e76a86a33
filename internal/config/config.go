package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type options struct {
	envPrefix string
}

type Option func(o *options)

// WithEnvPrefix only lets environment variables starting with prefix + "_" override keys.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// The values already in config are the defaults. An empty file skips reading a file, leaving
// the defaults and the environment. Environment variables name keys with "_" instead of ".",
// e.g. QUIZ_IDLETTL for Quiz.IdleTTL; lists are comma separated.
func Load(file string, config any, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(config, hook); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

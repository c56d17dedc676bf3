// Package config loads hostenroll configuration with Viper.
//
// The file follows the cloud-config layout: a "foreman" section with the
// registration settings, plus "client", "facter", "mqtt" and "logging"
// sections for tuning. Every key can be overridden with
// HOSTENROLL_<SECTION>_<KEY>.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides: HOSTENROLL_FOREMAN_PASSWORD.
const EnvPrefix = "HOSTENROLL"

// Load reads configuration from configPath, or from hostenroll.yaml in the
// usual locations when configPath is empty. A missing file is not an error.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.rate_limit", 0)
	v.SetDefault("client.resolve_concurrency", 1)
	v.SetDefault("facter.path", "facter")
	v.SetDefault("facter.package", "facter")
	v.SetDefault("facter.install", true)
	v.SetDefault("facter.timeout", "30s")
	v.SetDefault("mqtt.client_id", "hostenroll")
	v.SetDefault("mqtt.topic_prefix", "hostenroll")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hostenroll")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hostenroll")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults and env.
	}

	return v, nil
}

// Section returns the raw key/value settings under name, including
// environment overrides for the listed keys. It returns nil when neither the
// file nor the environment configures the section.
func Section(v *viper.Viper, name string, keys ...string) (map[string]any, error) {
	out := make(map[string]any)
	for k, val := range v.GetStringMap(name) {
		out[k] = val
	}
	for _, k := range keys {
		full := name + "." + k
		if err := v.BindEnv(full); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", full, err)
		}
		if v.IsSet(full) {
			out[k] = v.Get(full)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

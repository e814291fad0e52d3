// Package config provides viper-backed configuration loading shared by
// every taskfabricd binary: a YAML file under $HOME/.config/taskfabricd,
// overridable by environment variables. Command-line flags are not bound
// here; callers apply them to the loaded struct afterwards.
package config

import (
	"fmt"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfig reads <name>.yaml from $HOME/.config/taskfabricd (or the
// working directory as a fallback) into target, applying
// TASKFABRICD_-prefixed environment overrides.
func LoadConfig(name string, target interface{}) error {
	return LoadConfigWithDefaults(name, target, nil)
}

// LoadConfigWithDefaults behaves like LoadConfig but seeds viper with
// defaults before the file and environment are applied, so a config
// section a deployment never mentions still gets a sane value.
func LoadConfigWithDefaults(name string, target interface{}, defaults map[string]interface{}) error {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")

	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home + "/.config/taskfabricd")
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKFABRICD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file %s: %w", name, err)
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config %s: %w", name, err)
	}

	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/relay-rt/relay/auth"
	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/permission"
)

// Config is the relayd daemon configuration, read from a YAML file with
// RELAY_* environment overrides.
type Config struct {
	WebSocket struct {
		Address      string `mapstructure:"address"`
		CertFile     string `mapstructure:"cert_file"`
		KeyFile      string `mapstructure:"key_file"`
		OutQueueSize int    `mapstructure:"out_queue_size"`
	} `mapstructure:"websocket"`

	Metrics struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"metrics"`

	Permission struct {
		Workers      int          `mapstructure:"workers"`
		DefaultAllow bool         `mapstructure:"default_allow"`
		Rules        []RuleConfig `mapstructure:"rules"`
	} `mapstructure:"permission"`

	Auth struct {
		// Method selects the connection authenticator: "anonymous" or
		// "secret".
		Method string                  `mapstructure:"method"`
		Users  map[string]auth.UserKey `mapstructure:"users"`
	} `mapstructure:"auth"`

	Debug bool `mapstructure:"debug"`
}

// RuleConfig is one permission rule as written in the config file.
type RuleConfig struct {
	Topic      string `mapstructure:"topic"`
	Action     string `mapstructure:"action"`
	NamePrefix string `mapstructure:"name_prefix"`
	Allow      bool   `mapstructure:"allow"`
}

// LoadConfig reads the config file at path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("websocket.address", ":6020")
	v.SetDefault("permission.workers", 4)
	v.SetDefault("permission.default_allow", true)
	v.SetDefault("auth.method", "anonymous")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config %s: %s", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %s", path, err)
	}
	return &cfg, nil
}

// Evaluator builds the permission evaluator described by the config.
func (c *Config) Evaluator() permission.Evaluator {
	if len(c.Permission.Rules) == 0 {
		return permission.Open{}
	}
	rules := make([]permission.Rule, len(c.Permission.Rules))
	for i, rc := range c.Permission.Rules {
		rules[i] = permission.Rule{
			Topic:      message.Topic(rc.Topic),
			Action:     message.Action(rc.Action),
			NamePrefix: rc.NamePrefix,
			Allow:      rc.Allow,
		}
	}
	return permission.NewRules(rules, c.Permission.DefaultAllow)
}

// Authenticator builds the connection authenticator described by the config.
func (c *Config) Authenticator() (auth.Authenticator, error) {
	switch c.Auth.Method {
	case "", "anonymous":
		return auth.AnonymousAuth, nil
	case "secret":
		if len(c.Auth.Users) == 0 {
			return nil, fmt.Errorf("auth method %q requires users", c.Auth.Method)
		}
		return auth.NewSecretAuth(c.Auth.Users), nil
	}
	return nil, fmt.Errorf("unknown auth method: %s", c.Auth.Method)
}

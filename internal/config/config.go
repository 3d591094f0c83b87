package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Global configuration structure.
type Global struct {
	// Significance level used for every hypothesis test.
	Alpha    float64 `mapstructure:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	Decimals int     `mapstructure:"decimals" yaml:"decimals" validate:"gte=0,lte=12"`
	Format   string  `mapstructure:"format" yaml:"format" validate:"oneof=md json yaml"`

	FenceFactor    float64 `mapstructure:"fence_factor" yaml:"fence_factor" validate:"gt=0"`
	ConditionLimit float64 `mapstructure:"condition_limit" yaml:"condition_limit" validate:"gt=1"`
	StrongCorr     float64 `mapstructure:"strong_corr" yaml:"strong_corr" validate:"gt=0,lte=1"`
	ModerateCorr   float64 `mapstructure:"moderate_corr" yaml:"moderate_corr" validate:"gt=0,ltfield=StrongCorr"`

	LogLevel     string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	WorkspaceDir string `mapstructure:"workspace_dir" yaml:"workspace_dir"`
}

// Default returns the built-in settings. WorkspaceDir is left empty and
// resolved by Load.
func Default() *Global {
	return &Global{
		Alpha:          0.05,
		Decimals:       4,
		Format:         "md",
		FenceFactor:    1.5,
		ConditionLimit: 1e12,
		StrongCorr:     0.7,
		ModerateCorr:   0.3,
		LogLevel:       "info",
	}
}

// Validate checks value ranges after loading or editing.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Global, v string) error{
	"alpha":           floatSetter(func(c *Global) *float64 { return &c.Alpha }),
	"fence_factor":    floatSetter(func(c *Global) *float64 { return &c.FenceFactor }),
	"condition_limit": floatSetter(func(c *Global) *float64 { return &c.ConditionLimit }),
	"strong_corr":     floatSetter(func(c *Global) *float64 { return &c.StrongCorr }),
	"moderate_corr":   floatSetter(func(c *Global) *float64 { return &c.ModerateCorr }),
	"decimals": func(c *Global, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid int for decimals: %v", v)
		}
		c.Decimals = i
		return nil
	},
	"format": func(c *Global, v string) error {
		c.Format = strings.ToLower(v)
		return nil
	},
	"log_level": func(c *Global, v string) error {
		c.LogLevel = strings.ToLower(v)
		return nil
	},
	"workspace_dir": func(c *Global, v string) error {
		c.WorkspaceDir = v
		return nil
	},
}

func floatSetter(field func(*Global) *float64) func(*Global, string) error {
	return func(c *Global, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %v", v)
		}
		*field(c) = f
		return nil
	}
}

// Set assigns key from its string form and re-validates the result. On error c
// is left unchanged.
func (c *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *c
	if err := set(&next, val); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.statloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STATLOOM")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("alpha", d.Alpha)
	v.SetDefault("decimals", d.Decimals)
	v.SetDefault("format", d.Format)
	v.SetDefault("fence_factor", d.FenceFactor)
	v.SetDefault("condition_limit", d.ConditionLimit)
	v.SetDefault("strong_corr", d.StrongCorr)
	v.SetDefault("moderate_corr", d.ModerateCorr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("workspace_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkspaceDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		c.WorkspaceDir = filepath.Join(dir, "workspaces")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".statloom"), nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

const DefaultPrompt = "shell> "

type Config struct {
	MaxJobs  int      `yaml:"max_jobs" koanf:"max_jobs" validate:"gte=1,lte=4096"`
	Prompt   string   `yaml:"prompt" koanf:"prompt" validate:"required"`
	LogLevel string   `yaml:"log_level" koanf:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFile  string   `yaml:"log_file" koanf:"log_file"`
	Color    bool     `yaml:"color" koanf:"color"`
	Banner   bool     `yaml:"banner" koanf:"banner"`
	Plugins  []string `yaml:"plugins" koanf:"plugins" validate:"dive,required"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() *Config {
	return &Config{
		MaxJobs:  100,
		Prompt:   DefaultPrompt,
		LogLevel: "error",
		Color:    true,
		Banner:   true,
	}
}

func (c *Config) asMap() map[string]interface{} {
	return map[string]interface{}{
		"max_jobs":  c.MaxJobs,
		"prompt":    c.Prompt,
		"log_level": c.LogLevel,
		"log_file":  c.LogFile,
		"color":     c.Color,
		"banner":    c.Banner,
		"plugins":   c.Plugins,
	}
}

// Validate checks the configuration for values the shell cannot run with.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// BindFlags registers the flags that override configuration keys. Flag names
// use dashes where keys use underscores.
func BindFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.Int("max-jobs", def.MaxJobs, "maximum number of concurrent jobs")
	flags.String("prompt", def.Prompt, "prompt printed before each command")
	flags.String("log-level", def.LogLevel, "diagnostic log level (debug, info, warn, error)")
	flags.String("log-file", def.LogFile, "append diagnostic logs to this file instead of stderr")
	flags.Bool("color", def.Color, "colorize the banner and error messages")
	flags.Bool("banner", def.Banner, "print the banner on startup")
}

// Load merges defaults, the YAML file at path (skipped when path is empty)
// and any flags that were set, in increasing order of precedence.
func Load(fs afero.Fs, path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	known := Default().asMap()

	if err := k.Load(confmap.Provider(known, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		raw := make(map[string]interface{})
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}
		for key := range raw {
			if _, ok := known[key]; !ok {
				return nil, fmt.Errorf("error parsing config %s: unknown key %q", path, key)
			}
		}
		if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := known[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("error loading flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

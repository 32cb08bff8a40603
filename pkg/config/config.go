package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultOwnerID is the Discord user that owner-only commands answer to
// when BOTROSS_OWNER_ID is not set.
const DefaultOwnerID = "270631094657744896"

type DiscordConfig struct {
	Token   string `label:"Token" env:"DISCORD_TOKEN,required,notEmpty"`
	OwnerID string `label:"Owner ID" env:"BOTROSS_OWNER_ID"`
	Prefix  string `label:"Command Prefix" env:"BOTROSS_PREFIX"`
	Proxy   string `label:"Proxy" env:"BOTROSS_DISCORD_PROXY"`
}

type StoreConfig struct {
	DatabaseURL string `label:"Database URL" env:"DATABASE_URL,required,notEmpty"`
}

type PythonConfig struct {
	Command      []string      `label:"Interpreter" env:"BOTROSS_PYTHON" envSeparator:" "`
	Timeout      time.Duration `label:"Timeout" env:"BOTROSS_PY_TIMEOUT"`
	WorkDir      string        `label:"Script Directory" env:"BOTROSS_PY_WORKDIR"`
	RateBurst    int           `label:"Rate Burst" env:"BOTROSS_PY_BURST"`
	RateInterval time.Duration `label:"Rate Interval" env:"BOTROSS_PY_RATE_INTERVAL"`
}

type LogConfig struct {
	Level string `label:"Level" env:"BOTROSS_LOG_LEVEL"`
	File  string `label:"File" env:"BOTROSS_LOG_FILE"`
}

// Config is the full process configuration. It is read once from the
// environment at startup and never mutated afterwards.
type Config struct {
	Discord DiscordConfig `label:"Discord"`
	Store   StoreConfig   `label:"Store"`
	Python  PythonConfig  `label:"Python"`
	Log     LogConfig     `label:"Logging"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			OwnerID: DefaultOwnerID,
			Prefix:  `\`,
		},
		Python: PythonConfig{
			Command:      defaultPythonCommand(),
			Timeout:      5 * time.Second,
			WorkDir:      os.TempDir(),
			RateBurst:    3,
			RateInterval: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultPythonCommand() []string {
	if runtime.GOOS == "windows" {
		return []string{"py", "-3"}
	}
	return []string{"python3"}
}

// LoadConfig overlays the process environment on DefaultConfig.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(nil)
}

// LoadConfigFrom is LoadConfig with an explicit environment; a nil map
// means the process environment.
func LoadConfigFrom(environ map[string]string) (*Config, error) {
	cfg := DefaultConfig()

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Discord.Prefix) == "" {
		errs = append(errs, errors.New("command prefix must not be empty"))
	}
	if len(c.Python.Command) == 0 || strings.TrimSpace(c.Python.Command[0]) == "" {
		errs = append(errs, errors.New("python interpreter must not be empty"))
	}
	if c.Python.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("python timeout must be positive, got %v", c.Python.Timeout))
	}
	if c.Python.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("python rate burst must not be negative, got %d", c.Python.RateBurst))
	}
	return errors.Join(errs...)
}

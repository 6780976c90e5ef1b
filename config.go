package structout

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/reoring/structout/dialect"
)

// ThinkingLevel selects how much extended reasoning a backend may spend.
type ThinkingLevel int

const (
	ThinkingOff ThinkingLevel = iota
	ThinkingMinimal
	ThinkingLow
	ThinkingMedium
	ThinkingHigh
)

var thinkingNames = [...]string{"off", "minimal", "low", "medium", "high"}

func (l ThinkingLevel) String() string {
	if l < 0 || int(l) >= len(thinkingNames) {
		return fmt.Sprintf("thinking(%d)", int(l))
	}
	return thinkingNames[l]
}

// ParseThinkingLevel accepts the names returned by String.
func ParseThinkingLevel(s string) (ThinkingLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range thinkingNames {
		if n == s {
			return ThinkingLevel(i), nil
		}
	}
	return ThinkingOff, fmt.Errorf("structout: unknown thinking level %q", s)
}

// BudgetTokens is the reasoning token budget for backends that take one.
func (l ThinkingLevel) BudgetTokens() int {
	switch l {
	case ThinkingMinimal:
		return 1024
	case ThinkingLow:
		return 2048
	case ThinkingMedium:
		return 4096
	case ThinkingHigh:
		return 8192
	}
	return 0
}

// Defaults.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultDialect    = dialect.NameStrict
)

// Config is an immutable client configuration. Build one with
// NewConfigBuilder or LoadConfig; derive variants with ToBuilder.
type Config struct {
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	thinking    ThinkingLevel
	dialect     string
	depthLimit  int
}

func (c Config) Model() string                { return c.model }
func (c Config) Temperature() float64         { return c.temperature }
func (c Config) MaxTokens() int               { return c.maxTokens }
func (c Config) Timeout() time.Duration       { return c.timeout }
func (c Config) MaxRetries() int              { return c.maxRetries }
func (c Config) ThinkingLevel() ThinkingLevel { return c.thinking }
func (c Config) Dialect() string              { return c.dialect }
func (c Config) DepthLimit() int              { return c.depthLimit }

// ToBuilder returns a builder seeded with c.
func (c Config) ToBuilder() *ConfigBuilder {
	return &ConfigBuilder{c: c}
}

// ConfigBuilder accumulates settings. Mutating a builder never affects a
// Config it already built.
type ConfigBuilder struct {
	c Config
}

// NewConfigBuilder starts from the defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{c: Config{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		thinking:   ThinkingLow,
		dialect:    DefaultDialect,
		depthLimit: dialect.DefaultDepthLimit,
	}}
}

func (b *ConfigBuilder) Model(m string) *ConfigBuilder { b.c.model = m; return b }

func (b *ConfigBuilder) Temperature(t float64) *ConfigBuilder { b.c.temperature = t; return b }

func (b *ConfigBuilder) MaxTokens(n int) *ConfigBuilder { b.c.maxTokens = n; return b }

func (b *ConfigBuilder) Timeout(d time.Duration) *ConfigBuilder { b.c.timeout = d; return b }

// MaxRetries sets how many extra attempts follow a failed one.
func (b *ConfigBuilder) MaxRetries(n int) *ConfigBuilder { b.c.maxRetries = n; return b }

// NoRetries makes every call a single attempt.
func (b *ConfigBuilder) NoRetries() *ConfigBuilder { b.c.maxRetries = 0; return b }

func (b *ConfigBuilder) ThinkingLevel(l ThinkingLevel) *ConfigBuilder { b.c.thinking = l; return b }

func (b *ConfigBuilder) Dialect(name string) *ConfigBuilder { b.c.dialect = name; return b }

// DepthLimit bounds $ref inlining for the constrained dialect.
func (b *ConfigBuilder) DepthLimit(n int) *ConfigBuilder { b.c.depthLimit = n; return b }

// Build validates and returns the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.c
	var errs []error
	if c.temperature < 0 || c.temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0,2]", c.temperature))
	}
	if c.maxTokens < 0 {
		errs = append(errs, fmt.Errorf("max tokens must not be negative"))
	}
	if c.timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative"))
	}
	if c.maxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative"))
	}
	if c.depthLimit < 0 {
		errs = append(errs, fmt.Errorf("depth limit must not be negative"))
	}
	if c.thinking < ThinkingOff || c.thinking > ThinkingHigh {
		errs = append(errs, fmt.Errorf("unknown thinking level %d", int(c.thinking)))
	}
	if _, err := dialect.New(c.dialect, c.depthLimit); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("structout: invalid config: %w", errors.Join(errs...))
	}
	return c, nil
}

// MustBuild is Build that panics on error.
func (b *ConfigBuilder) MustBuild() Config {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// EnvPrefix prefixes environment overrides, e.g. STRUCTOUT_MODEL.
const EnvPrefix = "STRUCTOUT"

type fileConfig struct {
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	ThinkingLevel string        `mapstructure:"thinking_level"`
	Dialect       string        `mapstructure:"dialect"`
	DepthLimit    int           `mapstructure:"depth_limit"`
}

// LoadConfig reads configuration from an optional YAML file, a .env file in
// the working directory and STRUCTOUT_* environment variables, in increasing
// order of precedence. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("structout: load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("thinking_level", ThinkingLow.String())
	v.SetDefault("dialect", DefaultDialect)
	v.SetDefault("depth_limit", dialect.DefaultDepthLimit)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("max_tokens", 0)
	v.SetDefault("model", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("structout: read config %s: %w", path, err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("structout: decode config: %w", err)
	}
	level, err := ParseThinkingLevel(fc.ThinkingLevel)
	if err != nil {
		return Config{}, err
	}
	return NewConfigBuilder().
		Model(fc.Model).
		Temperature(fc.Temperature).
		MaxTokens(fc.MaxTokens).
		Timeout(fc.Timeout).
		MaxRetries(fc.MaxRetries).
		ThinkingLevel(level).
		Dialect(fc.Dialect).
		DepthLimit(fc.DepthLimit).
		Build()
}

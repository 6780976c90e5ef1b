package structout_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout"
	"github.com/reoring/structout/dialect"
)

func TestConfigBuilder_Defaults(t *testing.T) {
	cfg, err := structout.NewConfigBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, structout.DefaultTimeout, cfg.Timeout())
	assert.Equal(t, structout.DefaultMaxRetries, cfg.MaxRetries())
	assert.Equal(t, dialect.NameStrict, cfg.Dialect())
	assert.Equal(t, dialect.DefaultDepthLimit, cfg.DepthLimit())
	assert.Equal(t, structout.ThinkingLow, cfg.ThinkingLevel())
}

func TestConfigBuilder_Immutable(t *testing.T) {
	b := structout.NewConfigBuilder().Model("a").Temperature(0.2)
	first := b.MustBuild()
	b.Model("b").NoRetries()
	second := b.MustBuild()

	assert.Equal(t, "a", first.Model())
	assert.Equal(t, structout.DefaultMaxRetries, first.MaxRetries())
	assert.Equal(t, "b", second.Model())
	assert.Equal(t, 0, second.MaxRetries())

	derived := first.ToBuilder().Dialect(dialect.NameConstrained).MustBuild()
	assert.Equal(t, dialect.NameStrict, first.Dialect())
	assert.Equal(t, dialect.NameConstrained, derived.Dialect())
	assert.Equal(t, "a", derived.Model())
}

func TestConfigBuilder_Validation(t *testing.T) {
	_, err := structout.NewConfigBuilder().Temperature(3).MaxRetries(-1).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "max retries")

	_, err = structout.NewConfigBuilder().Dialect("nope").Build()
	require.ErrorIs(t, err, structout.ErrUnknownDialect)
}

func TestThinkingLevel(t *testing.T) {
	l, err := structout.ParseThinkingLevel("High")
	require.NoError(t, err)
	assert.Equal(t, structout.ThinkingHigh, l)
	assert.Equal(t, "high", l.String())
	assert.Equal(t, 8192, l.BudgetTokens())
	assert.Equal(t, 0, structout.ThinkingOff.BudgetTokens())

	_, err = structout.ParseThinkingLevel("extreme")
	require.Error(t, err)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "structout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: file-model
temperature: 0.5
timeout: 30s
max_retries: 1
dialect: constrained
depth_limit: 5
thinking_level: medium
`), 0o644))

	t.Setenv("STRUCTOUT_MODEL", "env-model")

	cfg, err := structout.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Model())
	assert.Equal(t, 0.5, cfg.Temperature())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 1, cfg.MaxRetries())
	assert.Equal(t, dialect.NameConstrained, cfg.Dialect())
	assert.Equal(t, 5, cfg.DepthLimit())
	assert.Equal(t, structout.ThinkingMedium, cfg.ThinkingLevel())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := structout.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, structout.DefaultTimeout, cfg.Timeout())
	assert.Equal(t, dialect.NameStrict, cfg.Dialect())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := structout.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

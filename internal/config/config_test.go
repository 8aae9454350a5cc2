package config_test

import (
	"meetinclick/backend/internal/config"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, config.BackendRedis, c.StoreBackend)
	assert.Equal(t, config.MaxCharacters, c.MaxCharacters)
	assert.Equal(t, config.DefaultStoreTimeout, c.StoreTimeout)
	assert.False(t, c.Proximity, "distance filter is off unless enabled")
	assert.Equal(t, "skip", c.UnknownPolicy)
	assert.True(t, c.NotifyQueue)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MAX_CHARACTERS", "140")
	t.Setenv("PROXIMITY_ENABLED", "true")
	t.Setenv("INTEREST_RADIUS_KM", "2.5")
	t.Setenv("STORE_TIMEOUT", "750ms")

	c, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, c.StoreBackend)
	assert.Equal(t, 140, c.MaxCharacters)
	assert.True(t, c.Proximity)
	assert.Equal(t, 2.5, c.RadiusKm)
	assert.Equal(t, 750*time.Millisecond, c.StoreTimeout)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		StoreBackend:  config.BackendMemory,
		MaxCharacters: 100,
		UnknownPolicy: "skip",
	}

	ok := base
	assert.NoError(t, ok.Validate())
	assert.Equal(t, config.DefaultStoreTimeout, ok.StoreTimeout)

	bad := base
	bad.StoreBackend = "etcd"
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxCharacters = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.UnknownPolicy = "guess"
	assert.Error(t, bad.Validate())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

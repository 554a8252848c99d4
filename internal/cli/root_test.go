package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/pkg/model"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "status", "acquire", "renew", "release", "force-unlock", "run", "users", "audit", "config"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestEffectiveConfigPathPrecedence(t *testing.T) {
	origFlag := configPath
	defer func() { configPath = origFlag }()

	configPath = "/tmp/from-flag.yaml"
	t.Setenv("PROPSYNC_CONFIG", "/tmp/from-env.yaml")
	assert.Equal(t, "/tmp/from-flag.yaml", effectiveConfigPath())

	configPath = ""
	assert.Equal(t, "/tmp/from-env.yaml", effectiveConfigPath())
}

func TestEffectiveUsernamePrecedence(t *testing.T) {
	origFlag := userFlag
	defer func() { userFlag = origFlag }()

	userFlag = "flag-user"
	t.Setenv("PROPSYNC_USER", "env-user")
	assert.Equal(t, "flag-user", effectiveUsername())

	userFlag = ""
	assert.Equal(t, "env-user", effectiveUsername())
}

func TestLocalSessionRoundTrip(t *testing.T) {
	origFlag := configPath
	defer func() { configPath = origFlag }()
	configPath = filepath.Join(t.TempDir(), "config.yaml")

	sess := &model.Session{
		SessionID:   "sess-42",
		UserID:      1,
		Username:    "alice",
		MachineID:   "mac-01",
		AcquiredAt:  time.Now(),
		IsWriteLock: true,
	}
	require.NoError(t, saveLocalSession(sess))

	ls, err := loadLocalSession()
	require.NoError(t, err)
	assert.Equal(t, "sess-42", ls.SessionID)
	assert.Equal(t, "alice", ls.Username)
	assert.Equal(t, "mac-01", ls.Machine)

	clearLocalSession()
	_, err = loadLocalSession()
	assert.Error(t, err)
}

// TestInitStatusAcquireRelease drives the happy path end to end through
// the command tree against a temp store.
func TestInitStatusAcquireRelease(t *testing.T) {
	origConfig, origUser, origJSON := configPath, userFlag, jsonOutput
	defer func() { configPath, userFlag, jsonOutput = origConfig, origUser, origJSON }()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	storePath := filepath.Join(dir, "props.db")

	run := func(args ...string) error {
		rootCmd.SetArgs(args)
		return rootCmd.Execute()
	}

	require.NoError(t, run("init", "--config", cfgPath, "--store", storePath))

	// The seeded admin account can act immediately.
	require.NoError(t, run("status", "--config", cfgPath, "--user", "admin"))
	require.NoError(t, run("acquire", "--config", cfgPath, "--user", "admin"))
	require.NoError(t, run("renew", "--config", cfgPath, "--user", "admin"))
	require.NoError(t, run("release", "--config", cfgPath, "--user", "admin"))

	require.NoError(t, run("users", "add", "alice", "--config", cfgPath, "--display-name", "Alice"))
	require.NoError(t, run("users", "list", "--config", cfgPath))
	require.NoError(t, run("audit", "tail", "--config", cfgPath))
	require.NoError(t, run("config", "show", "--config", cfgPath))
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tablestore/internal/paths"
	"github.com/mesh-intelligence/tablestore/internal/sqlite"
	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// dirs returns fresh config and data directory flags.
func dirs(t *testing.T) (string, string, []string) {
	t.Helper()
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	configDir := filepath.Join(t.TempDir(), "config")
	dataDir := filepath.Join(t.TempDir(), "data")
	return configDir, dataDir, []string{"--config-dir", configDir, "--data-dir", dataDir, "--log-level", "error"}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tablestore "+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	configDir, dataDir, global := dirs(t)

	out, err := execute(t, append([]string{"init"}, global...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized storage")

	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "listen_addr: 127.0.0.1:8080")
	assert.Contains(t, string(data), "data_dir: "+dataDir)

	_, err = os.Stat(filepath.Join(dataDir, sqlite.DatabaseFileName))
	assert.NoError(t, err)

	// A second init keeps the existing config.
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("backend: sqlite\n"), 0o600))
	out, err = execute(t, append([]string{"init"}, global...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "Wrote")
	data, err = os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "backend: sqlite\n", string(data))
}

func TestConfigRejectsUnknownBackend(t *testing.T) {
	configDir, _, global := dirs(t)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("backend: postgres\n"), 0o600))

	_, err := execute(t, append([]string{"init"}, global...)...)
	assert.ErrorIs(t, err, errUsage)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestConfigEnvOverride(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"),
		[]byte("listen_addr: 0.0.0.0:9000\nshutdown_timeout: 3s\nauth:\n  issuer: from-file\n"), 0o600))

	v, err := newViper(configDir)
	require.NoError(t, err)
	s, err := decodeSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", s.ListenAddr)
	assert.Equal(t, 3*time.Second, s.ShutdownTimeout)
	assert.Equal(t, "from-file", s.Auth.Issuer)
	assert.Equal(t, types.BackendSQLite, s.Backend, "default applies")

	t.Setenv("TABLESTORE_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("TABLESTORE_AUTH_JWT_SECRET", "s3cret")
	v, err = newViper(configDir)
	require.NoError(t, err)
	s, err = decodeSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", s.ListenAddr)
	assert.Equal(t, "s3cret", s.Auth.JWTSecret)
	assert.True(t, s.serverOptions().Auth.Enabled())
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	v, err := newViper(t.TempDir())
	require.NoError(t, err)
	s, err := decodeSettings(v)
	require.NoError(t, err)
	assert.Equal(t, defaultListenAddr, s.ListenAddr)
	assert.Equal(t, defaultLogLevel, s.LogLevel)
	assert.Equal(t, types.DefaultBusyTimeout, s.BusyTimeout)
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, global := dirs(t)
	global[len(global)-1] = "loud"
	_, err := execute(t, append([]string{"init"}, global...)...)
	assert.ErrorIs(t, err, errUsage)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	_, srcData, srcFlags := dirs(t)

	src := sqlite.NewBackend(nil)
	require.NoError(t, src.Attach(types.Config{Backend: types.BackendSQLite, DataDir: srcData}))
	db, err := src.CreateDatabase(ctx, "crm")
	require.NoError(t, err)
	require.NoError(t, src.Detach())

	snapshotDir := filepath.Join(t.TempDir(), "snap")
	out, err := execute(t, append([]string{"export", "--out", snapshotDir}, srcFlags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 databases")

	_, dstData, dstFlags := dirs(t)
	out, err = execute(t, append([]string{"import", "--in", snapshotDir}, dstFlags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 databases")

	dst := sqlite.NewBackend(nil)
	require.NoError(t, dst.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dstData}))
	defer dst.Detach()
	got, err := dst.GetDatabase(ctx, db.DatabaseID)
	require.NoError(t, err)
	assert.Equal(t, "crm", got.Name)
}

func TestExportRequiresOut(t *testing.T) {
	_, _, global := dirs(t)
	_, err := execute(t, append([]string{"export"}, global...)...)
	assert.Error(t, err)
}

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, exitSuccess, run(context.Background(), []string{"version"}))
	assert.Equal(t, exitUserError, run(context.Background(), []string{"init", "--log-level", "loud",
		"--config-dir", t.TempDir(), "--data-dir", t.TempDir()}))
}

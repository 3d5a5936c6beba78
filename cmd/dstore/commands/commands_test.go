package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/helper"
)

// testEnv is a config file over a posix repository in a temp directory.
type testEnv struct {
	dir     string
	repo    string
	cfgFile string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	env := &testEnv{
		dir:     dir,
		repo:    filepath.Join(dir, "repo"),
		cfgFile: filepath.Join(dir, "config.yaml"),
	}
	cfg := fmt.Sprintf(`logging:
  level: ERROR
stanza: main
lock_path: %s
spool_path: %s
repos:
  - type: posix
    path: %s
`, filepath.Join(dir, "lock"), filepath.Join(dir, "spool"), env.repo)
	require.NoError(t, os.WriteFile(env.cfgFile, []byte(cfg), 0o600))
	return env
}

func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Status messages go to stderr; both streams share one buffer.
	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(append([]string{"--config", e.cfgFile}, args...))
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func (e *testEnv) localFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o640))
	return p
}

func TestPutGetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "archive.info", "[db]\ndb-id=1\n")

	out, err := env.execute(t, "put", src, "<REPO:ARCHIVE>/archive.info")
	require.NoError(t, err)
	assert.Contains(t, out, "Copied")

	stored, err := os.ReadFile(filepath.Join(env.repo, "archive", "main", "archive.info"))
	require.NoError(t, err)
	assert.Equal(t, "[db]\ndb-id=1\n", string(stored))

	out, err = env.execute(t, "get", "<REPO:ARCHIVE>/archive.info")
	require.NoError(t, err)
	assert.Equal(t, "[db]\ndb-id=1\n", out)

	dst := filepath.Join(env.dir, "copy.info")
	_, err = env.execute(t, "get", "<REPO:ARCHIVE>/archive.info", dst)
	require.NoError(t, err)
	copied, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "[db]\ndb-id=1\n", string(copied))
}

func TestPutShardsWALSegments(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "segment", "wal")
	const segment = "000000010000000000000002"

	_, err := env.execute(t, "put", src, "<REPO:ARCHIVE>/16-1/"+segment)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(env.repo, "archive", "main", "16-1", segment[:16], segment))
}

func TestGetMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "get", "<REPO:ARCHIVE>/missing")
	assert.ErrorIs(t, err, storage.ErrFileMissing)
}

func TestLs(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "data", "12345")
	for _, dst := range []string{"<REPO:ARCHIVE>/b.info", "<REPO:ARCHIVE>/a.info", "<REPO:ARCHIVE>/16-1/x"} {
		_, err := env.execute(t, "put", src, dst)
		require.NoError(t, err)
	}

	out, err := env.execute(t, "ls", "-o", "json")
	require.NoError(t, err)

	var entries []entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"16-1", "a.info", "b.info"}, names)
	assert.Equal(t, uint64(5), entries[1].Size)

	out, err = env.execute(t, "ls", "<REPO:ARCHIVE>", "--recurse", "--filter", `\.info$`, "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)

	out, err = env.execute(t, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "a.info")

	out, err = env.execute(t, "ls", "<REPO:BACKUP>")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries")
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "data", "12345")
	_, err := env.execute(t, "put", src, "<REPO:BACKUP>/backup.info")
	require.NoError(t, err)

	out, err := env.execute(t, "info", "<REPO:BACKUP>/backup.info", "-o", "json")
	require.NoError(t, err)

	var e entry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "<REPO:BACKUP>/backup.info", e.Name)
	assert.Equal(t, "file", e.Type)
	assert.Equal(t, uint64(5), e.Size)
	assert.Equal(t, "0640", e.Mode)

	out, err = env.execute(t, "info", "<REPO:BACKUP>/backup.info")
	require.NoError(t, err)
	assert.Contains(t, out, "Size")
	assert.Contains(t, out, "5")
}

func TestMkdirAndRm(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "mkdir", "<REPO:BACKUP>/20240101-120000F/pg_data")
	require.Error(t, err, "parent is missing without --parents")

	_, err = env.execute(t, "mkdir", "<REPO:BACKUP>/20240101-120000F/pg_data", "--parents")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(env.repo, "backup", "main", "20240101-120000F", "pg_data"))

	_, err = env.execute(t, "rm", "<REPO:BACKUP>/20240101-120000F")
	require.Error(t, err, "path is not empty")

	_, err = env.execute(t, "rm", "<REPO:BACKUP>/20240101-120000F", "--recurse")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(env.repo, "backup", "main", "20240101-120000F"))

	_, err = env.execute(t, "rm", "<REPO:BACKUP>/missing")
	assert.ErrorIs(t, err, storage.ErrFileMissing)

	_, err = env.execute(t, "rm", "<REPO:BACKUP>/missing", "--force")
	assert.NoError(t, err)
}

func TestDryRun(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "data", "x")

	_, err := env.execute(t, "--dry-run", "put", src, "<REPO:ARCHIVE>/x")
	assert.ErrorIs(t, err, helper.ErrWriteInDryRun)
	assert.NoFileExists(t, filepath.Join(env.repo, "archive", "main", "x"))

	_, err = env.execute(t, "--dry-run", "rm", "<REPO:ARCHIVE>/x")
	assert.ErrorIs(t, err, helper.ErrWriteInDryRun)
}

func TestStopStart(t *testing.T) {
	env := newTestEnv(t)
	stopFile := filepath.Join(env.dir, "lock", "main.stop")

	_, err := env.execute(t, "check-stop")
	require.NoError(t, err)

	_, err = env.execute(t, "stop")
	require.NoError(t, err)
	assert.FileExists(t, stopFile)

	_, err = env.execute(t, "check-stop")
	assert.ErrorIs(t, err, helper.ErrStopFile)

	// Another stanza is still free.
	_, err = env.execute(t, "--stanza", "other", "check-stop")
	assert.NoError(t, err)

	_, err = env.execute(t, "stop")
	assert.NoError(t, err, "an existing stop file is kept")

	_, err = env.execute(t, "stop", "--force")
	assert.NoError(t, err)

	_, err = env.execute(t, "start")
	require.NoError(t, err)
	assert.NoFileExists(t, stopFile)

	_, err = env.execute(t, "start")
	assert.NoError(t, err, "a missing stop file is not an error")
}

func TestGlobalStop(t *testing.T) {
	env := newTestEnv(t)

	// An empty stanza flag keeps the configured one, so write the global
	// file through a config without stanza.
	cfg, err := os.ReadFile(env.cfgFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.cfgFile, bytes.Replace(cfg, []byte("stanza: main\n"), nil, 1), 0o600))

	_, err = env.execute(t, "stop")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.dir, "lock", "all.stop"))

	_, err = env.execute(t, "--stanza", "main", "check-stop")
	assert.ErrorIs(t, err, helper.ErrStopFile)
}

func TestInvalidFlags(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "ls", "-o", "xml")
	assert.Error(t, err)

	_, err = env.execute(t, "--stanza", "a/b", "ls")
	assert.ErrorIs(t, err, helper.ErrInvalidStanza)

	_, err = env.execute(t, "--repo", "2", "ls")
	assert.ErrorIs(t, err, helper.ErrInvalidIndex)
}

func TestMissingConfigFile(t *testing.T) {
	env := newTestEnv(t)
	env.cfgFile = filepath.Join(env.dir, "absent.yaml")

	_, err := env.execute(t, "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dstore dev")
	assert.Contains(t, out, "commit: none")
}

func TestCompletion(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "dstore")

	_, err = env.execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestLsHuman(t *testing.T) {
	env := newTestEnv(t)
	src := env.localFile(t, "data", string(make([]byte, 3*1024)))
	_, err := env.execute(t, "put", src, "<REPO:ARCHIVE>/big")
	require.NoError(t, err)

	out, err := env.execute(t, "ls", "--human")
	require.NoError(t, err)
	assert.Contains(t, out, "3Ki")

	out, err = env.execute(t, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "3072")
}

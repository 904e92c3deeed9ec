package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro"
)

func writeABC(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc.csv")
	require.NoError(t, os.WriteFile(path, []byte("A,B,C\n1,1,5\n1,2,5\n2,3,5\n"), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDiscoverText(t *testing.T) {
	out, err := execute(t, "discover", "--threads", "2", writeABC(t))
	require.NoError(t, err)

	assert.Contains(t, out, "FDs (2):")
	assert.Contains(t, out, "  [B]->A (error 0.00000)")
	assert.Contains(t, out, "  []->C (error 0.00000)")
	assert.Contains(t, out, "UCCs (1):")
	assert.Contains(t, out, "  [B] (error 0.00000)")
	assert.Contains(t, out, "4 search spaces")
}

func TestDiscoverJSON(t *testing.T) {
	out, err := execute(t, "discover", "--format", "json", "--no-keys", writeABC(t))
	require.NoError(t, err)

	var res struct {
		Relation string            `json:"relation"`
		FDs      []json.RawMessage `json:"fds"`
		UCCs     []json.RawMessage `json:"uccs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "abc", res.Relation)
	assert.Len(t, res.FDs, 2)
	assert.Empty(t, res.UCCs)
}

func TestDiscoverConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pyro.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("find_fds: false\nparallelism: 1\n"), 0o600))

	out, err := execute(t, "discover", "--config", cfgPath, writeABC(t))
	require.NoError(t, err)
	assert.Contains(t, out, "FDs (0):")
	assert.Contains(t, out, "UCCs (1):")

	out, err = execute(t, "discover", "--config", cfgPath, "--fds", writeABC(t))
	require.NoError(t, err)
	assert.Contains(t, out, "FDs (2):")
}

func TestDiscoverFlagDefaults(t *testing.T) {
	def := pyro.DefaultConfig()
	fl := newDiscoverCmd().Flags()

	assert.Equal(t, "0.01", fl.Lookup("max-error").DefValue)
	assert.Equal(t, strconv.Itoa(def.Parallelism), fl.Lookup("threads").DefValue)
	assert.Equal(t, "500", fl.Lookup("sample-size").DefValue)
	assert.Equal(t, def.LaunchPadOrder, fl.Lookup("order").DefValue)
	assert.Equal(t, "true", fl.Lookup("fds").DefValue)
}

func TestDiscoverSpillToDirectory(t *testing.T) {
	out, err := execute(t, "discover",
		"--memory-limit", "1024",
		"--spill", t.TempDir(),
		"--sample-size", "0",
		writeABC(t),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "FDs (2):")
}

func TestDiscoverErrors(t *testing.T) {
	abc := writeABC(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"discover", filepath.Join(t.TempDir(), "nope.csv")}},
		{"no file", []string{"discover"}},
		{"bad format", []string{"discover", "--format", "xml", abc}},
		{"bad log level", []string{"discover", "--log-level", "loud", abc}},
		{"bad log format", []string{"discover", "--log-format", "xml", abc}},
		{"bad spill", []string{"discover", "--spill", "gs://bucket", abc}},
		{"nothing to find", []string{"discover", "--fds=false", "--keys=false", abc}},
		{"nothing to find either", []string{"discover", "--no-fds", "--no-keys", abc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}

	_, err := execute(t, "discover", "--max-error", "2", abc)
	var invalid *pyro.ErrInvalidOption
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "max_error", invalid.Name)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pyro dev\n", out)
}

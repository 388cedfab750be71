package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		splitMaxLen = 0
		characterFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSplitCommand(t *testing.T) {
	out, err := execute(t, "abcdefghij\nklmno\npqrstu", "split", "--max", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "--- chunk 1/3 (10 bytes) ---\nabcdefghij\n")
	assert.Contains(t, out, "--- chunk 3/3 (6 bytes) ---\npqrstu\n")
	assert.NotContains(t, out, "oversized")
}

func TestSplitCommandMarksOversized(t *testing.T) {
	out, err := execute(t, "tiny\n"+strings.Repeat("x", 20), "split", "--max", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "(20 bytes) oversized")
}

func TestKeygenCommand(t *testing.T) {
	out, err := execute(t, "", "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, "Public key (base64):")
	assert.Contains(t, out, "Private key (base64):")
}

func TestCheckConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "character.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: "2002"
name: Data Dog
rooms: [room-1]
team:
  enabled: true
  leader_id: "2001"
  member_ids: ["2001", "2002"]
  keywords:
    "2002": [database, sql]
`), 0o600))

	out, err := execute(t, "", "check-config", "--character", path)
	require.NoError(t, err)
	assert.Contains(t, out, "character: Data Dog (@data_dog, id 2002)")
	assert.Contains(t, out, "team:      member of 2 (leader 2001)")
	assert.Contains(t, out, "keywords:  database, sql")
}

func TestCheckConfigRejectsMissingFile(t *testing.T) {
	_, err := execute(t, "", "check-config", "--character", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GRIMOIRE_STORAGE_BACKEND", "file")
	t.Setenv("GRIMOIRE_STORAGE_DIR", filepath.Join(dir, "games"))
	t.Setenv("GRIMOIRE_SCRIPTS_DIR", filepath.Join("..", "..", "data", "scripts"))
	t.Setenv("GRIMOIRE_LOGGING_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestScriptCommands(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "script", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Trouble Brewing")
	assert.Contains(t, out, "Leeches and Travellers")

	out, err = execute(t, "script", "order", "trouble_brewing", "--first")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.Contains(t, lines[1], "Poisoner", "the poisoner wakes first")

	out, err = execute(t, "script", "characters")
	require.NoError(t, err)
	assert.Contains(t, out, "lleech")
}

func TestScriptValidateReportsBadFiles(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, writeFile(path, "name: bad\ncharacters: [chef, chef, imp]\n"))

	out, err := execute(t, "script", "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestScenarioRunSavesGames(t *testing.T) {
	dir := setupEnv(t)
	scenarios, err := filepath.Glob(filepath.Join("..", "..", "data", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	replayDir := filepath.Join(dir, "replays")
	args := append([]string{"scenario", "run", "--save", "--replay-dir", replayDir, "--events"}, scenarios...)
	out, err := execute(t, args...)
	require.NoError(t, err, out)
	assert.Equal(t, len(scenarios), strings.Count(out, "PASS"))

	out, err = execute(t, "snapshot", "list")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), len(scenarios))

	out, err = execute(t, "snapshot", "verify")
	require.NoError(t, err, out)
	assert.Equal(t, len(scenarios), strings.Count(out, "ok"))

	files, err := filepath.Glob(filepath.Join(dir, "games", "*.snapshot.gz"))
	require.NoError(t, err)
	require.Len(t, files, len(scenarios))
	id := strings.TrimSuffix(filepath.Base(files[0]), ".snapshot.gz")

	out, err = execute(t, "snapshot", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"game_id": "`+id+`"`)

	out, err = execute(t, "snapshot", "replay", replayDir, id)
	require.NoError(t, err)
	assert.Contains(t, out, "FIRST_NIGHT")

	_, err = execute(t, "snapshot", "delete", id)
	require.NoError(t, err)
	_, err = execute(t, "snapshot", "show", id)
	assert.Error(t, err)
}

func TestScenarioRunReportsFailures(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, writeFile(path, `
name: broken
script: trouble_brewing
seats:
  - {player: ann, character: imp}
  - {player: bob, character: chef}
  - {player: cat, character: empath}
  - {player: dan, character: soldier}
  - {player: eve, character: monk}
steps:
  - {do: expect, expect: {phase: day}}
`))

	out, err := execute(t, "scenario", "run", path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "expectation failed")
}

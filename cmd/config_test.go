package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designpipe/dp/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	viper.SetDefault("db_path", filepath.Join(dir, "dp.db"))
	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("poll.interval_ms", 2000)
	viper.SetDefault("pipeline.mode", "fast")

	// Initialize output
	ui = output.New()

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dp configuration")
	assert.Contains(t, string(data), "base_url")
	assert.Contains(t, string(data), "interval_ms: 2000")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dp configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	os.Setenv("DP_TEST_KEY", "val")
	defer os.Unsetenv("DP_TEST_KEY")
	assert.Contains(t, detectSource("test_key", "DP_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "DP_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "DP_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"db_path": "/tmp/dp.db",
		"api": map[string]any{
			"base_url": "http://localhost:9000",
		},
		"poll": map[string]any{
			"interval_ms": 500,
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["db_path"])
	assert.True(t, result["api.base_url"])
	assert.True(t, result["poll.interval_ms"])
	assert.False(t, result["api"])
}

func TestPipelineMode(t *testing.T) {
	testEnv(t)

	mode, err := pipelineMode("")
	require.NoError(t, err)
	assert.Equal(t, "fast", string(mode))

	mode, err = pipelineMode("pro")
	require.NoError(t, err)
	assert.Equal(t, "pro", string(mode))

	_, err = pipelineMode("turbo")
	assert.Error(t, err)
}

func TestReadPlacementsFile_YAML(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "placements.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: sofa\n  x: 1.5\n  y: 0\n  z: 2.0\n  rotation_deg: 90\n"), 0644))

	placements, err := readPlacementsFile(path)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, "sofa", placements[0].Name)
	assert.Equal(t, 1.5, placements[0].X)
	assert.Equal(t, 90.0, placements[0].RotationDeg)
}

func TestReadPlacementsFile_JSON(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "placements.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"bed","x":0.5,"y":0,"z":1}]`), 0644))

	placements, err := readPlacementsFile(path)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, "bed", placements[0].Name)
}

func TestReadPlacementsFile_RejectsNameless(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "placements.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- x: 1.0\n  y: 0\n  z: 2.0\n"), 0644))

	_, err := readPlacementsFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

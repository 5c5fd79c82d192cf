package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linecam/internal/camera"
	"linecam/internal/telemetry"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`
serial_number: VS-888
image_output_path: %s
log_path: %s
cameras:
  - name: sdk-1
    camera_type: VS
  - name: sdk-2
    camera_type: VS
`, filepath.Join(dir, "images"), filepath.Join(dir, "logs", "app.log"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	path, dir := writeConfig(t)

	out, err := execute(t, "run", "--config", path)
	require.NoError(t, err)

	var report struct {
		Serial   string `json:"serial_number"`
		Model    string `json:"model_name"`
		Outcomes []struct {
			Camera string `json:"camera"`
			OK     bool   `json:"ok"`
			Path   string `json:"path"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "VS-888", report.Serial)
	assert.Equal(t, "model_xyz", report.Model)
	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.True(t, o.OK, o.Camera)
		assert.FileExists(t, o.Path)
	}

	// カメラのイベントはジャーナルに記録される
	assert.FileExists(t, filepath.Join(dir, "logs", telemetry.CSVFileName))
	data, err := os.ReadFile(filepath.Join(dir, "logs", telemetry.JSONLFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"captured"`)
	assert.Contains(t, string(data), `"event":"released"`)
}

func TestCaptureCommand(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "capture", "sdk-2", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, camera.MockSDKResult)

	_, err = execute(t, "capture", "missing", "--config", path)
	require.Error(t, err)
	assert.True(t, camera.IsUnknownCamera(err))

	_, err = execute(t, "capture", "--config", path)
	require.Error(t, err)
}

func TestCommand_MissingConfig(t *testing.T) {
	t.Setenv("LINECAM_CONFIG", "")

	_, err := execute(t, "run")
	require.Error(t, err)

	_, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDevicesCommand(t *testing.T) {
	out, err := execute(t, "devices")
	require.NoError(t, err)

	var devices []camera.LocalDevice
	require.NoError(t, json.Unmarshal([]byte(out), &devices))
}

func TestRunCommand_StdoutIsReportOnly(t *testing.T) {
	path, _ := writeConfig(t)
	t.Setenv("LOG_OUTPUT", "")
	t.Setenv("LOG_LEVEL", "debug")

	stdout, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	defer stdout.Close()

	orig := os.Stdout
	os.Stdout = stdout
	t.Cleanup(func() { os.Stdout = orig })

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"run", "--config", path})
	err = cmd.ExecuteContext(context.Background())
	os.Stdout = orig
	require.NoError(t, err)

	data, err := os.ReadFile(stdout.Name())
	require.NoError(t, err)

	// ログが混ざると単一のJSONとして読めない
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report), string(data))
	assert.Equal(t, "VS-888", report["serial_number"])
}

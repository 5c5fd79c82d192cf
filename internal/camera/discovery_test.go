package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscovery_Scan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video10", "video2", "video0", "videocodec", "null"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	d := &Discovery{
		dir: dir,
		cardName: func(_ context.Context, path string) string {
			if filepath.Base(path) == "video2" {
				return "HD USB Camera"
			}
			return ""
		},
	}

	devices, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, []int{0, 2, 10}, []int{devices[0].Index, devices[1].Index, devices[2].Index})
	assert.Equal(t, "カメラ 0", devices[0].Name)
	assert.Equal(t, "HD USB Camera", devices[1].Name)
	assert.Equal(t, filepath.Join(dir, "video10"), devices[2].Path)
	assert.True(t, devices[0].Ready)
}

func TestDiscovery_Canceled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video0"), nil, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Discovery{dir: dir}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCardType(t *testing.T) {
	output := `Driver Info:
	Driver name      : uvcvideo
	Card type        : HD Pro Webcam C920
	Bus info         : usb-0000:00:14.0-1
`
	assert.Equal(t, "HD Pro Webcam C920", parseCardType(output))
	assert.Equal(t, "", parseCardType("Driver name : uvcvideo"))
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/video3", DevicePath(3))

	index, ok := deviceIndex(DevicePath(3))
	assert.True(t, ok)
	assert.Equal(t, 3, index)
}

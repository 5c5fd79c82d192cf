package camera

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// 既定のキャプチャ解像度
const (
	DefaultFrameWidth  = 1280
	DefaultFrameHeight = 720
)

// V4L2Source はV4L2デバイスを開くFrameSource実装
//
// デバイスファイルを開いたまま保持し、フレームはffmpegで1枚ずつ取得する。
type V4L2Source struct {
	width  int
	height int
}

// NewV4L2Source は新しいV4L2Sourceを作成する
func NewV4L2Source(width, height int) *V4L2Source {
	return &V4L2Source{width: width, height: height}
}

// DevicePath はデバイス番号に対応するデバイスパスを返す
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// Open はデバイスを開く
func (s *V4L2Source) Open(_ context.Context, index int) (FrameReader, error) {
	path := DevicePath(index)

	// デバイスファイルの存在確認
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	// 読み取り権限チェックを兼ねて開いたまま保持する
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	return &v4l2Device{
		path:   path,
		file:   file,
		width:  s.width,
		height: s.height,
	}, nil
}

// v4l2Device は開かれたV4L2デバイス
type v4l2Device struct {
	path   string
	file   *os.File
	width  int
	height int
	mu     sync.Mutex
}

// ReadFrame は1フレームをキャプチャしてJPEGバイト配列として返す
func (d *v4l2Device) ReadFrame(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil, fmt.Errorf("%w: デバイス %s は閉じられています", ErrFrameRead, d.path)
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", d.width, d.height),
		"-i", d.path,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2", // 高品質JPEG
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v (stderr: %s)", ErrFrameRead, err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: 空のフレーム", ErrFrameRead)
	}

	return stdout.Bytes(), nil
}

// Close はデバイスファイルを閉じる
func (d *v4l2Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil
	return err
}

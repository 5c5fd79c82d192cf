package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LocalDevice はUSBカメラとして設定できるローカルデバイス
type LocalDevice struct {
	Index int    `json:"device_index"`
	Path  string `json:"path"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"` // 読み取り権限があるか
}

var videoDevicePattern = regexp.MustCompile(`video(\d+)$`)

// Discovery は /dev/video* を走査してローカルデバイスを列挙する
type Discovery struct {
	dir      string
	cardName func(ctx context.Context, path string) string
}

// NewDiscovery は /dev を走査するDiscoveryを作成する
func NewDiscovery() *Discovery {
	return &Discovery{dir: "/dev", cardName: v4l2CardName}
}

// Scan はデバイス番号順にローカルデバイスを返す
func (d *Discovery) Scan(ctx context.Context) ([]LocalDevice, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	devices := make([]LocalDevice, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		index, ok := deviceIndex(path)
		if !ok {
			continue
		}

		devices = append(devices, LocalDevice{
			Index: index,
			Path:  path,
			Name:  d.name(ctx, path, index),
			Ready: readable(path),
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

func (d *Discovery) name(ctx context.Context, path string, index int) string {
	if d.cardName != nil {
		if name := d.cardName(ctx, path); name != "" {
			return name
		}
	}
	return fmt.Sprintf("カメラ %d", index)
}

// deviceIndex はデバイスパスから番号を取り出す
func deviceIndex(path string) (int, bool) {
	m := videoDevicePattern.FindStringSubmatch(filepath.Base(path))
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func readable(path string) bool {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// v4l2CardName はv4l2-ctlの "Card type" からカメラ名を取得する
func v4l2CardName(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--info").Output()
	if err != nil {
		return ""
	}
	return parseCardType(string(output))
}

func parseCardType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

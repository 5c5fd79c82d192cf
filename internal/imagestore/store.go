// Package imagestore はキャプチャ結果を検査結果付きのファイル名で保存する
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"linecam/internal/camera"
)

// UnknownSerial はシリアル番号が未設定の場合に使われる
const UnknownSerial = "UNKNOWN"

const timestampLayout = "20060102_1504"

// Store は出力ディレクトリへの保存を行う
type Store struct {
	dir string
	now func() time.Time
}

// New は新しいStoreを作成する
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir は出力ディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

// Save はキャプチャ結果を保存し、保存先のパスを返す
//
// ファイル名は <serial>_<OK|NG>_<YYYYMMDD_HHMM>。カメラ名を持つ結果は
// カメラ名のサブディレクトリに保存する。画素データを持つ結果は .jpg に、
// それ以外は取得元を記録した .txt に書き込む。
func (s *Store) Save(result camera.Result, serial string, ok bool) (string, error) {
	if serial == "" {
		serial = UnknownSerial
	}

	status := "OK"
	if !ok {
		status = "NG"
	}

	timestamp := s.now().Format(timestampLayout)
	base := fmt.Sprintf("%s_%s_%s", serial, status, timestamp)

	dir := s.dir
	if name := result.Camera; name != "" {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return "", fmt.Errorf("カメラ名 %q は保存先に使えません", name)
		}
		dir = filepath.Join(dir, name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	var (
		path string
		data []byte
	)
	if result.Kind == camera.KindFrameGrabber && result.HasImage() {
		path = filepath.Join(dir, base+".jpg")
		data = result.Data
	} else {
		path = filepath.Join(dir, base+".txt")
		data = []byte(fmt.Sprintf("Mock image captured from %s at %s\n", result.Type, timestamp))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("画像の保存に失敗: %w", err)
	}

	return path, nil
}

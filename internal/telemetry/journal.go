package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

const (
	CSVFileName   = "log.csv"
	JSONLFileName = "log.jsonl"

	timestampLayout = "2006-01-02T15:04:05"
)

var csvHeader = []string{"timestamp", "level", "message"}

// CSVSink はRecordをlog.csvに追記する
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVSink はdir/log.csvを開く。新しいファイルにはヘッダー行を書き込む
func NewCSVSink(dir string) (*CSVSink, error) {
	file, created, err := openAppend(filepath.Join(dir, CSVFileName))
	if err != nil {
		return nil, err
	}

	s := &CSVSink{file: file, w: csv.NewWriter(file)}
	if created {
		if err := s.write(csvHeader); err != nil {
			file.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Send(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write([]string{r.Timestamp.Format(timestampLayout), string(r.Level), r.Message})
}

func (s *CSVSink) write(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("CSVへの書き込みに失敗: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// JSONLSink はRecordをlog.jsonlに1行ずつ追記する
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink はdir/log.jsonlを開く
func NewJSONLSink(dir string) (*JSONLSink, error) {
	file, _, err := openAppend(filepath.Join(dir, JSONLFileName))
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	return &JSONLSink{file: file, enc: enc}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Send(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("JSONLへの書き込みに失敗: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// openAppend はファイルを追記モードで開き、新規作成したかを返す
func openAppend(path string) (*os.File, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
	}

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("ログファイルを開けません: %w", err)
	}
	return file, created, nil
}

// Package telemetry は検査ログと検査結果を外部へ送信する
//
// ローカルのジャーナル（CSV / JSON Lines）と、リモートの送信先
// （Webhook / MQTT / NATS）を同じSinkインターフェースで扱う。
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Level はレコードのログレベル
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARNING"
	LevelError Level = "ERROR"
)

// Record は1件のログまたは検査結果
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Camera    string         `json:"camera,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewRecord はIDと時刻を採番したRecordを作成する
func NewRecord(level Level, camera, message string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Camera:    camera,
	}
}

// With はフィールドを追加したRecordを返す
func (r Record) With(key string, value any) Record {
	fields := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[key] = value
	r.Fields = fields
	return r
}

package camera

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventKind はSessionの状態遷移イベントの種類
type EventKind string

const (
	EventConnected       EventKind = "connected"
	EventConnectFailed   EventKind = "connect_failed"
	EventCaptured        EventKind = "captured"
	EventCaptureRejected EventKind = "capture_rejected" // 想定外の応答
	EventCaptureFailed   EventKind = "capture_failed"
	EventReleased        EventKind = "released"
	EventReleaseFailed   EventKind = "release_failed"
)

// Event はRegistryが発行するイベント
type Event struct {
	Camera     string
	CameraType string
	Kind       EventKind
	Message    string
	Err        error
	At         time.Time
}

// Failed はエラーレベルのイベントかを返す
func (e Event) Failed() bool {
	switch e.Kind {
	case EventConnectFailed, EventCaptureFailed, EventCaptureRejected, EventReleaseFailed:
		return true
	default:
		return false
	}
}

// EventSink はイベントの送り先
//
// Emit はSessionのロックを解放した後に呼ばれるため、同じRegistryを操作してもよい。
// 複数のgoroutineから同時に呼ばれることがある。
type EventSink interface {
	Emit(Event)
}

// LogSink はイベントをzerologに出力するEventSink
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink は新しいLogSinkを作成する
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit はイベントをログに出力する
func (s *LogSink) Emit(e Event) {
	ev := s.logger.Info()
	if e.Failed() {
		ev = s.logger.Error().Err(e.Err)
	}

	ev.Str("camera", e.Camera).
		Str("camera_type", e.CameraType).
		Str("event", string(e.Kind)).
		Msg(e.Message)
}

// MultiSink は複数のEventSinkに順にイベントを渡す
type MultiSink []EventSink

// Emit は全てのEventSinkにイベントを渡す
func (m MultiSink) Emit(e Event) {
	for _, sink := range m {
		sink.Emit(e)
	}
}

// MemorySink はイベントを保持するEventSink（テスト・診断用）
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Emit はイベントを記録する
func (m *MemorySink) Emit(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events は記録済みイベントのコピーを返す
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]Event, len(m.events))
	copy(events, m.events)
	return events
}

// ForCamera は指定カメラのイベント種類を記録順に返す
func (m *MemorySink) ForCamera(name string) []EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kinds []EventKind
	for _, e := range m.events {
		if e.Camera == name {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

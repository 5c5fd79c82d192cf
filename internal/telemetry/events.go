package telemetry

import (
	"context"

	"linecam/internal/camera"
)

// EventSink はcamera.EventをRecordに変換してFanoutへ送る
type EventSink struct {
	fanout *Fanout
}

var _ camera.EventSink = (*EventSink)(nil)

// NewEventSink は新しいEventSinkを作成する
func NewEventSink(fanout *Fanout) *EventSink {
	return &EventSink{fanout: fanout}
}

func (s *EventSink) Emit(e camera.Event) {
	s.fanout.Emit(context.Background(), FromEvent(e))
}

// FromEvent はcamera.EventからRecordを作成する
func FromEvent(e camera.Event) Record {
	level := LevelInfo
	if e.Failed() {
		level = LevelError
	}

	r := NewRecord(level, e.Camera, e.Message).
		With("event", string(e.Kind)).
		With("camera_type", e.CameraType)
	if !e.At.IsZero() {
		r.Timestamp = e.At
	}
	if e.Err != nil {
		r = r.With("error", e.Err.Error())
	}
	return r
}

package telemetry

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Sink はRecordの送り先
type Sink interface {
	Name() string
	Send(ctx context.Context, r Record) error
	Close() error
}

// Fanout は複数のSinkへRecordを送る
//
// 個々のSinkの失敗はログに記録するだけで、呼び出し側には返さない。
type Fanout struct {
	sinks  []Sink
	logger zerolog.Logger
}

// NewFanout は新しいFanoutを作成する
func NewFanout(logger zerolog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Add はSinkを追加する
func (f *Fanout) Add(sink Sink) {
	f.sinks = append(f.sinks, sink)
}

// Len は登録されているSinkの数を返す
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Emit は全てのSinkへRecordを送り、失敗したSinkの数を返す
func (f *Fanout) Emit(ctx context.Context, r Record) int {
	failed := 0
	for _, sink := range f.sinks {
		if err := sink.Send(ctx, r); err != nil {
			failed++
			f.logger.Error().
				Err(err).
				Str("sink", sink.Name()).
				Str("record_id", r.ID).
				Msg("テレメトリの送信に失敗しました")
		}
	}
	return failed
}

// Close は全てのSinkを閉じる
func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package inspection は全カメラで1回ずつ撮影する検査処理を実行する
//
// 1台ごとに 接続 → 撮影 → 保存 → 結果送信 → 解放 を行う。
// あるカメラの失敗は結果に記録し、残りのカメラの検査を続ける。
package inspection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linecam/internal/camera"
	"linecam/internal/imagestore"
	"linecam/internal/telemetry"
)

// Outcome は1台分の検査結果
type Outcome struct {
	Camera     string    `json:"camera"`
	CameraType string    `json:"camera_type"`
	OK         bool      `json:"ok"`
	Token      string    `json:"token,omitempty"`
	CaptureID  string    `json:"capture_id,omitempty"`
	Path       string    `json:"path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`

	Err error `json:"-"`
}

// Report は1回の検査の結果
type Report struct {
	ID         string    `json:"id"`
	Serial     string    `json:"serial_number"`
	Model      string    `json:"model_name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// OK は全カメラがOKだったかを返す
func (r Report) OK() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.OK {
			return false
		}
	}
	return true
}

// Failed はエラーになったカメラの数を返す
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Runner は検査を実行する
type Runner struct {
	registry  *camera.Registry
	store     *imagestore.Store
	publisher *telemetry.Fanout
	logger    zerolog.Logger
	serial    string
	model     string
}

// Option はRunnerの設定
type Option func(*Runner)

// WithPublisher は検査結果の送信先を設定する
func WithPublisher(publisher *telemetry.Fanout) Option {
	return func(r *Runner) { r.publisher = publisher }
}

// WithLogger はロガーを設定する
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithProduct は検査対象のシリアル番号とモデル名を設定する
func WithProduct(serial, model string) Option {
	return func(r *Runner) {
		r.serial = serial
		r.model = model
	}
}

// NewRunner は新しいRunnerを作成する
func NewRunner(registry *camera.Registry, store *imagestore.Store, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		store:    store,
		logger:   zerolog.Nop(),
		serial:   imagestore.UnknownSerial,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run は全カメラを名前順に検査する
//
// ctxがキャンセルされた場合は残りのカメラを検査せずにctx.Err()を返す。
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{
		ID:        uuid.NewString(),
		Serial:    r.serial,
		Model:     r.model,
		StartedAt: time.Now(),
	}

	for _, name := range r.registry.Names() {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		report.Outcomes = append(report.Outcomes, r.inspect(ctx, report.ID, name))
	}

	report.FinishedAt = time.Now()
	r.logger.Info().
		Str("inspection_id", report.ID).
		Bool("ok", report.OK()).
		Int("cameras", len(report.Outcomes)).
		Int("failed", report.Failed()).
		Msg("検査が完了しました")

	return report, nil
}

// RunCamera は1台のカメラだけを検査する
func (r *Runner) RunCamera(ctx context.Context, name string) Outcome {
	return r.inspect(ctx, uuid.NewString(), name)
}

func (r *Runner) inspect(ctx context.Context, inspectionID, name string) Outcome {
	outcome := Outcome{Camera: name}
	if d, err := r.registry.Descriptor(name); err == nil {
		outcome.CameraType = d.Type
	}

	release, err := r.connect(ctx, name)
	if err == nil {
		err = r.capture(ctx, name, &outcome)
	}
	if err != nil {
		outcome.OK = false
		outcome.Err = err
		outcome.Error = err.Error()
		r.logger.Error().Err(err).Str("camera", name).Msg("検査に失敗しました")
	}

	r.publish(ctx, inspectionID, outcome)
	release()

	return outcome
}

// connect はカメラを接続し、解放用の関数を返す
//
// すでに接続済みのカメラはそのまま使い、検査後も解放しない。
func (r *Runner) connect(ctx context.Context, name string) (func(), error) {
	noop := func() {}

	if err := r.registry.Connect(ctx, name); err != nil {
		if errors.Is(err, camera.ErrAlreadyConnected) {
			return noop, nil
		}
		return noop, err
	}

	return func() {
		if err := r.registry.Release(name); err != nil {
			r.logger.Warn().Err(err).Str("camera", name).Msg("カメラの解放に失敗しました")
		}
	}, nil
}

func (r *Runner) capture(ctx context.Context, name string, outcome *Outcome) error {
	result, err := r.registry.Capture(ctx, name)
	if err != nil {
		return err
	}

	outcome.OK = result.OK
	outcome.Token = result.Token
	outcome.CaptureID = result.ID
	outcome.CapturedAt = result.CapturedAt

	path, err := r.store.Save(result, r.serial, result.OK)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	outcome.Path = path

	return nil
}

func (r *Runner) publish(ctx context.Context, inspectionID string, o Outcome) {
	if r.publisher == nil {
		return
	}

	level := telemetry.LevelInfo
	if o.Err != nil || !o.OK {
		level = telemetry.LevelError
	}

	rec := telemetry.NewRecord(level, o.Camera, "inspection result").
		With("inspection_id", inspectionID).
		With("serial_number", r.serial).
		With("model_name", r.model).
		With("camera_type", o.CameraType).
		With("ok", o.OK).
		With("token", o.Token).
		With("path", o.Path)
	if o.Err != nil {
		rec = rec.With("error", o.Error)
	}

	r.publisher.Emit(ctx, rec)
}

// Shutdown は全カメラを解放し、解放に失敗した数を返す
func (r *Runner) Shutdown() int {
	return r.registry.ReleaseAll()
}

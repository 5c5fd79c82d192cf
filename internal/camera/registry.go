package camera

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Registry は名前をキーにしたSessionの集合
//
// キー集合は生成時に固定され、以後Sessionの追加・削除は行わない。
// マップ自体は不変なのでRegistryはロックを持たず、排他はSession毎に行う。
type Registry struct {
	sessions map[string]*Session
}

// Option はRegistryの生成オプション
type Option func(*registryOptions)

type registryOptions struct {
	backend backendOptions
	sink    EventSink
	now     func() time.Time
}

// WithEventSink はイベントの送り先を設定する
func WithEventSink(sink EventSink) Option {
	return func(o *registryOptions) { o.sink = sink }
}

// WithFrameSource はUSBカメラのフレームソースを設定する
func WithFrameSource(source FrameSource) Option {
	return func(o *registryOptions) { o.backend.frameSource = source }
}

// WithSDK はVSカメラのSDKを設定する
func WithSDK(sdk SDK) Option {
	return func(o *registryOptions) { o.backend.sdk = sdk }
}

// WithSocketTimeout はトリガーソケットのタイムアウトを変更する
func WithSocketTimeout(timeout time.Duration) Option {
	return func(o *registryOptions) {
		if timeout > 0 {
			o.backend.socketTimeout = timeout
		}
	}
}

// withClock はテスト用に時刻を固定する
func withClock(now func() time.Time) Option {
	return func(o *registryOptions) { o.now = now }
}

// NewRegistry はDescriptor一覧からRegistryを作成する
//
// 全てのSessionは未接続状態で作成される。名前の重複や未知のカメラ種別はエラー。
func NewRegistry(descriptors []Descriptor, opts ...Option) (*Registry, error) {
	o := registryOptions{
		backend: defaultBackendOptions(),
		sink:    NewLogSink(zerolog.Nop()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	sessions := make(map[string]*Session, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, ErrEmptyName
		}
		if _, exists := sessions[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}

		b, err := newBackend(d, o.backend)
		if err != nil {
			return nil, fmt.Errorf("カメラ %s のバックエンド作成に失敗: %w", d.Name, err)
		}

		session := newSession(d, b, o.sink)
		session.now = o.now
		sessions[d.Name] = session
	}

	return &Registry{sessions: sessions}, nil
}

// Connect は指定カメラに接続する
func (r *Registry) Connect(ctx context.Context, name string) error {
	session, err := r.session(name)
	if err != nil {
		return err
	}
	return session.Connect(ctx)
}

// Capture は指定カメラでキャプチャする
func (r *Registry) Capture(ctx context.Context, name string) (Result, error) {
	session, err := r.session(name)
	if err != nil {
		return Result{}, err
	}
	return session.Capture(ctx)
}

// Release は指定カメラを解放する
//
// 解放中のエラーはイベントとして記録されるだけで呼び出し側には返さない。
// 未知の名前の場合のみ UnknownCameraError を返す。
func (r *Registry) Release(name string) error {
	session, err := r.session(name)
	if err != nil {
		return err
	}
	_ = session.Release()
	return nil
}

// ReleaseAll は全カメラを解放する
//
// 1台の解放に失敗しても残りのカメラの解放を続ける。失敗した件数を返す。
func (r *Registry) ReleaseAll() int {
	failed := 0
	for _, name := range r.Names() {
		if err := r.sessions[name].Release(); err != nil {
			failed++
		}
	}
	return failed
}

// Names は設定済みのカメラ名をソートして返す
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State は指定カメラの状態を返す
func (r *Registry) State(name string) (State, error) {
	session, err := r.session(name)
	if err != nil {
		return "", err
	}
	return session.State(), nil
}

// Descriptor は指定カメラの設定を返す
func (r *Registry) Descriptor(name string) (Descriptor, error) {
	session, err := r.session(name)
	if err != nil {
		return Descriptor{}, err
	}
	return session.Descriptor(), nil
}

// Status はカメラ毎の状態の一覧
type Status struct {
	Name  string
	Type  string
	Kind  Kind
	State State
}

// Statuses は全カメラの状態を名前順に返す
func (r *Registry) Statuses() []Status {
	names := r.Names()
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		s := r.sessions[name]
		statuses = append(statuses, Status{
			Name:  name,
			Type:  s.descriptor.Type,
			Kind:  s.kind,
			State: s.State(),
		})
	}
	return statuses
}

// Len は管理しているカメラの台数を返す
func (r *Registry) Len() int {
	return len(r.sessions)
}

func (r *Registry) session(name string) (*Session, error) {
	session, exists := r.sessions[name]
	if !exists {
		return nil, &UnknownCameraError{Name: name}
	}
	return session, nil
}

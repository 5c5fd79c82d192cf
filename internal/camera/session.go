package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session は1台のカメラの接続状態とハンドルを所有する
//
// handle が nil でないのは state が StateConnected の間だけ。
type Session struct {
	descriptor Descriptor
	kind       Kind
	backend    backend
	sink       EventSink
	now        func() time.Time

	mu     sync.Mutex
	state  State
	handle handle
}

// newSession は未接続状態のSessionを作成する
func newSession(d Descriptor, b backend, sink EventSink) *Session {
	return &Session{
		descriptor: d,
		kind:       b.kind(),
		backend:    b,
		sink:       sink,
		now:        time.Now,
		state:      StateDisconnected,
	}
}

// Connect はバックエンドを開く
//
// 接続済みの場合は既存のハンドルを残したまま ErrAlreadyConnected を返す。
func (s *Session) Connect(ctx context.Context) error {
	ev, err := s.connect(ctx)
	s.emit(ev)
	return err
}

func (s *Session) connect(ctx context.Context) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnected {
		err := &ConnectError{Camera: s.descriptor.Name, Kind: s.kind, Err: ErrAlreadyConnected}
		return s.event(EventConnectFailed, "接続済みのため接続要求を拒否しました", err), err
	}

	h, err := s.backend.open(ctx)
	if err != nil {
		cerr := &ConnectError{Camera: s.descriptor.Name, Kind: s.kind, Err: err}
		return s.event(EventConnectFailed, "カメラの接続に失敗しました", cerr), cerr
	}

	s.handle = h
	s.state = StateConnected

	return s.event(EventConnected, s.connectedMessage(), nil), nil
}

// Capture は1回キャプチャする
//
// 通信・デバイス障害は CaptureError を返すが、Sessionは接続済みのまま残る。
func (s *Session) Capture(ctx context.Context) (Result, error) {
	result, ev, err := s.capture(ctx)
	s.emit(ev)
	return result, err
}

func (s *Session) capture(ctx context.Context) (Result, Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		err := &NotConnectedError{Camera: s.descriptor.Name}
		return Result{}, s.event(EventCaptureFailed, "未接続のカメラでキャプチャが要求されました", err), err
	}

	f, err := s.handle.capture(ctx)
	if err != nil {
		cerr := &CaptureError{Camera: s.descriptor.Name, Kind: s.kind, Err: err}
		return Result{}, s.event(EventCaptureFailed, "キャプチャに失敗しました", cerr), cerr
	}

	result := Result{
		ID:         uuid.New().String(),
		Camera:     s.descriptor.Name,
		Type:       s.descriptor.Type,
		Kind:       s.kind,
		OK:         f.ok,
		Token:      f.token,
		Data:       f.data,
		Reply:      f.reply,
		CapturedAt: s.now(),
	}

	if !f.ok {
		return result, s.event(EventCaptureRejected, fmt.Sprintf("想定外の応答: %q", f.reply), nil), nil
	}

	return result, s.event(EventCaptured, s.capturedMessage(result), nil), nil
}

// Release はハンドルを閉じて未接続状態に戻す
//
// closeが失敗しても状態は必ず disconnected になり、ハンドルは破棄される。
// 返されるエラーは記録用であり、状態には影響しない。
func (s *Session) Release() error {
	ev, released, err := s.release()
	if released {
		s.emit(ev)
	}
	return err
}

func (s *Session) release() (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return Event{}, false, nil
	}

	err := s.handle.close()
	s.handle = nil
	s.state = StateDisconnected

	if err != nil {
		return s.event(EventReleaseFailed, "解放中にエラーが発生しました", err), true,
			fmt.Errorf("カメラ %s の解放に失敗: %w", s.descriptor.Name, err)
	}

	return s.event(EventReleased, "カメラを解放しました", nil), true, nil
}

// State は現在の状態を取得する
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Descriptor はSessionの設定を返す
func (s *Session) Descriptor() Descriptor {
	return s.descriptor
}

// Kind はバックエンドの種類を返す
func (s *Session) Kind() Kind {
	return s.kind
}

func (s *Session) event(kind EventKind, message string, err error) Event {
	return Event{
		Camera:     s.descriptor.Name,
		CameraType: s.descriptor.Type,
		Kind:       kind,
		Message:    message,
		Err:        err,
		At:         s.now(),
	}
}

// emit はロックを解放した後に呼ぶ
func (s *Session) emit(e Event) {
	if s.sink != nil {
		s.sink.Emit(e)
	}
}

func (s *Session) connectedMessage() string {
	switch s.kind {
	case KindTriggerSocket:
		return fmt.Sprintf("%s カメラが %s に接続しました", s.descriptor.Type, s.descriptor.Address())
	case KindFrameGrabber:
		return fmt.Sprintf("USBカメラ %s を開きました", DevicePath(s.descriptor.DeviceIndex))
	default:
		return fmt.Sprintf("%s カメラをSDK経由で初期化しました", s.descriptor.Type)
	}
}

func (s *Session) capturedMessage(r Result) string {
	if r.HasImage() {
		return fmt.Sprintf("画像を取得しました (%d bytes)", len(r.Data))
	}
	return fmt.Sprintf("%s カメラが %s を返しました", s.descriptor.Type, r.Token)
}

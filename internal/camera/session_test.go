package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSession_FrameGrabberLifecycle(t *testing.T) {
	ctx := context.Background()
	reader := newFrameReader([]byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, nil)
	source := newFrameSource(reader)
	sink := &MemorySink{}

	registry, err := NewRegistry(
		[]Descriptor{{Name: "cam1", Type: TypeUSB, DeviceIndex: 2}},
		WithFrameSource(source),
		WithEventSink(sink),
	)
	require.NoError(t, err)

	require.NoError(t, registry.Connect(ctx, "cam1"))
	source.AssertCalled(t, "Open", mock.Anything, 2)

	result, err := registry.Capture(ctx, "cam1")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.HasImage())
	assert.Equal(t, []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, result.Data)
	assert.Equal(t, TypeUSB, result.Type)

	require.NoError(t, registry.Release("cam1"))
	reader.AssertNumberOfCalls(t, "Close", 1)

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, state)

	assert.Equal(t, []EventKind{EventConnected, EventCaptured, EventReleased}, sink.ForCamera("cam1"))
}

func TestSession_ConnectTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	reader := newFrameReader([]byte{1}, nil)
	source := newFrameSource(reader)

	registry, err := NewRegistry([]Descriptor{{Name: "cam1", Type: TypeUSB}}, WithFrameSource(source))
	require.NoError(t, err)

	require.NoError(t, registry.Connect(ctx, "cam1"))

	err = registry.Connect(ctx, "cam1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, KindFrameGrabber, connectErr.Kind)

	// 既存のハンドルは閉じられず、デバイスは1回だけ開かれる
	source.AssertNumberOfCalls(t, "Open", 1)
	reader.AssertNotCalled(t, "Close")

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)

	// 既存のハンドルでキャプチャを続けられる
	result, err := registry.Capture(ctx, "cam1")
	require.NoError(t, err)
	assert.True(t, result.OK)

	require.NoError(t, registry.Release("cam1"))
	reader.AssertNumberOfCalls(t, "Close", 1)
}

func TestSession_CaptureWhileDisconnected(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry([]Descriptor{
		{Name: "vs1", Type: TypeVS},
		{Name: "vs2", Type: TypeVS},
	})
	require.NoError(t, err)

	require.NoError(t, registry.Connect(ctx, "vs2"))

	_, err = registry.Capture(ctx, "vs1")
	require.Error(t, err)
	assert.True(t, IsNotConnected(err))

	var notConnected *NotConnectedError
	require.ErrorAs(t, err, &notConnected)
	assert.Equal(t, "vs1", notConnected.Camera)

	// 他のSessionには影響しない
	state, err := registry.State("vs2")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)

	state, err = registry.State("vs1")
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, state)
}

func TestSession_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reader := newFrameReader([]byte{1}, nil)
	registry, err := NewRegistry([]Descriptor{{Name: "cam1", Type: TypeUSB}}, WithFrameSource(newFrameSource(reader)))
	require.NoError(t, err)

	// 未接続でのReleaseは何もしない
	require.NoError(t, registry.Release("cam1"))

	require.NoError(t, registry.Connect(ctx, "cam1"))
	require.NoError(t, registry.Release("cam1"))
	require.NoError(t, registry.Release("cam1"))

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, state)
	reader.AssertNumberOfCalls(t, "Close", 1)
}

func TestSession_ReleaseWhenCloseFails(t *testing.T) {
	ctx := context.Background()
	reader := newFrameReader([]byte{1}, errors.New("device busy"))
	sink := &MemorySink{}

	registry, err := NewRegistry(
		[]Descriptor{{Name: "cam1", Type: TypeUSB}},
		WithFrameSource(newFrameSource(reader)),
		WithEventSink(sink),
	)
	require.NoError(t, err)
	require.NoError(t, registry.Connect(ctx, "cam1"))

	// Registry.Release は解放エラーを呼び出し側に返さない
	require.NoError(t, registry.Release("cam1"))

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, state)
	assert.Equal(t, []EventKind{EventConnected, EventReleaseFailed}, sink.ForCamera("cam1"))

	// 再接続できる（ハンドルは残っていない）
	require.NoError(t, registry.Connect(ctx, "cam1"))
}

func TestSession_ConnectFailure(t *testing.T) {
	ctx := context.Background()
	source := &mockFrameSource{}
	source.On("Open", mock.Anything, 0).Return(nil, ErrDeviceUnavailable)
	sink := &MemorySink{}

	registry, err := NewRegistry(
		[]Descriptor{{Name: "cam1", Type: TypeUSB}},
		WithFrameSource(source),
		WithEventSink(sink),
	)
	require.NoError(t, err)

	err = registry.Connect(ctx, "cam1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "cam1", connectErr.Camera)
	assert.Equal(t, KindFrameGrabber, connectErr.Kind)

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, state)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventConnectFailed, events[0].Kind)
	assert.True(t, events[0].Failed())
}

func TestSession_FrameReadFailure(t *testing.T) {
	ctx := context.Background()
	reader := &mockFrameReader{}
	reader.On("ReadFrame", mock.Anything).Return(nil, ErrFrameRead).Once()
	reader.On("ReadFrame", mock.Anything).Return([]byte{}, nil).Once()
	reader.On("Close").Return(nil)

	registry, err := NewRegistry([]Descriptor{{Name: "cam1", Type: TypeUSB}}, WithFrameSource(newFrameSource(reader)))
	require.NoError(t, err)
	require.NoError(t, registry.Connect(ctx, "cam1"))

	_, err = registry.Capture(ctx, "cam1")
	var captureErr *CaptureError
	require.ErrorAs(t, err, &captureErr)
	assert.ErrorIs(t, err, ErrFrameRead)

	// 空のフレームも読み取り失敗として扱う
	_, err = registry.Capture(ctx, "cam1")
	require.ErrorAs(t, err, &captureErr)
	assert.ErrorIs(t, err, ErrFrameRead)

	state, err := registry.State("cam1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)
}

func TestSession_SDKHandle(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	registry, err := NewRegistry([]Descriptor{{Name: "vs", Type: TypeVS}}, withClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	require.NoError(t, registry.Connect(ctx, "vs"))
	result, err := registry.Capture(ctx, "vs")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, MockSDKResult, result.Token)
	assert.Equal(t, KindSDKHandle, result.Kind)
	assert.Equal(t, fixed, result.CapturedAt)

	require.NoError(t, registry.Release("vs"))
}

func TestSession_SDKFailure(t *testing.T) {
	registry, err := NewRegistry([]Descriptor{{Name: "vs", Type: TypeVS}}, WithSDK(failingSDK{}))
	require.NoError(t, err)

	err = registry.Connect(context.Background(), "vs")
	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, KindSDKHandle, connectErr.Kind)
}

// stateProbeSink はイベント受信時にRegistryから状態を読む
type stateProbeSink struct {
	registry *Registry
	states   []State
}

func (s *stateProbeSink) Emit(e Event) {
	state, err := s.registry.State(e.Camera)
	if err == nil {
		s.states = append(s.states, state)
	}
}

func TestSession_SinkCanCallBackIntoRegistry(t *testing.T) {
	sink := &stateProbeSink{}
	registry, err := NewRegistry([]Descriptor{{Name: "sdk", Type: TypeVS}}, WithEventSink(sink))
	require.NoError(t, err)
	sink.registry = registry

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		_ = registry.Connect(ctx, "sdk")
		_, _ = registry.Capture(ctx, "sdk")
		_ = registry.Release("sdk")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("イベント送信中にSessionのロックが保持されています")
	}

	assert.Equal(t, []State{StateConnected, StateConnected, StateDisconnected}, sink.states)
}

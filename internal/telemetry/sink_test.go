package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"linecam/internal/camera"
	"linecam/internal/logger"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Name() string {
	return m.Called().String(0)
}

func (m *mockSink) Send(ctx context.Context, r Record) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockSink) Close() error {
	return m.Called().Error(0)
}

// memorySink は受信したRecordを保持する
type memorySink struct {
	mu      sync.Mutex
	records []Record
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Send(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Close() error { return nil }

func TestFanout_ContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	failing := &mockSink{}
	failing.On("Name").Return("broken")
	failing.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	failing.On("Close").Return(errors.New("already closed"))

	healthy := &memorySink{}
	fanout := NewFanout(logger.NewTestLogger(), failing, healthy)
	assert.Equal(t, 2, fanout.Len())

	r := NewRecord(LevelInfo, "cam1", "captured")
	assert.Equal(t, 1, fanout.Emit(ctx, r))

	require.Len(t, healthy.records, 1)
	assert.Equal(t, r.ID, healthy.records[0].ID)
	failing.AssertNumberOfCalls(t, "Send", 1)

	require.Error(t, fanout.Close())
}

func TestWebhookSink(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Record
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var rec Record
		require.NoError(t, json.Unmarshal(body, &rec))

		mu.Lock()
		received = append(received, rec)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink("workflow", srv.URL)
	assert.Equal(t, "workflow", sink.Name())

	r := NewRecord(LevelInfo, "cam2", "inspection").With("ok", true)
	require.NoError(t, sink.Send(context.Background(), r))
	require.NoError(t, sink.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, r.ID, received[0].ID)
	assert.Equal(t, true, received[0].Fields["ok"])
}

func TestWebhookSink_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	sink := NewWebhookSink("webhook", srv.URL)
	err := sink.Send(context.Background(), NewRecord(LevelInfo, "", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	// サーバー停止後は接続エラー
	srv.Close()
	require.Error(t, sink.Send(context.Background(), NewRecord(LevelInfo, "", "x")))
}

func TestFromEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	info := FromEvent(camera.Event{Camera: "cam1", CameraType: camera.TypeIV4, Kind: camera.EventConnected, Message: "接続しました", At: at})
	assert.Equal(t, LevelInfo, info.Level)
	assert.Equal(t, "cam1", info.Camera)
	assert.Equal(t, at, info.Timestamp)
	assert.Equal(t, "connected", info.Fields["event"])
	assert.Equal(t, camera.TypeIV4, info.Fields["camera_type"])
	assert.NotContains(t, info.Fields, "error")

	failed := FromEvent(camera.Event{Camera: "cam1", Kind: camera.EventCaptureFailed, Err: errors.New("reset")})
	assert.Equal(t, LevelError, failed.Level)
	assert.Equal(t, "reset", failed.Fields["error"])
	assert.False(t, failed.Timestamp.IsZero())
}

func TestEventSink_WithRegistry(t *testing.T) {
	ctx := context.Background()
	journal := &memorySink{}

	registry, err := camera.NewRegistry(
		[]camera.Descriptor{{Name: "vs", Type: camera.TypeVS}},
		camera.WithEventSink(NewEventSink(NewFanout(logger.NewTestLogger(), journal))),
	)
	require.NoError(t, err)

	require.NoError(t, registry.Connect(ctx, "vs"))
	_, err = registry.Capture(ctx, "vs")
	require.NoError(t, err)
	require.NoError(t, registry.Release("vs"))

	require.Len(t, journal.records, 3)
	events := make([]any, 0, len(journal.records))
	for _, r := range journal.records {
		assert.Equal(t, "vs", r.Camera)
		events = append(events, r.Fields["event"])
	}
	assert.Equal(t, []any{"connected", "captured", "released"}, events)
}

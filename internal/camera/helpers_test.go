package camera

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockFrameSource はテスト用のFrameSource
type mockFrameSource struct {
	mock.Mock
}

func (m *mockFrameSource) Open(ctx context.Context, index int) (FrameReader, error) {
	args := m.Called(ctx, index)
	reader, _ := args.Get(0).(FrameReader)
	return reader, args.Error(1)
}

// mockFrameReader はテスト用のFrameReader
type mockFrameReader struct {
	mock.Mock
}

func (m *mockFrameReader) ReadFrame(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockFrameReader) Close() error {
	return m.Called().Error(0)
}

// newFrameSource は指定のReaderを返すmockFrameSourceを作成する
func newFrameSource(reader FrameReader) *mockFrameSource {
	source := &mockFrameSource{}
	source.On("Open", mock.Anything, mock.AnythingOfType("int")).Return(reader, nil)
	return source
}

// newFrameReader は固定フレームを返すmockFrameReaderを作成する
func newFrameReader(data []byte, closeErr error) *mockFrameReader {
	reader := &mockFrameReader{}
	reader.On("ReadFrame", mock.Anything).Return(data, nil)
	reader.On("Close").Return(closeErr)
	return reader
}

// failingSDK はAcquireが失敗するSDK
type failingSDK struct{}

func (failingSDK) Acquire(context.Context) (string, error) {
	return "", errors.New("sdk: device not found")
}

func (failingSDK) Grab(context.Context, string) (string, error) {
	return "", errors.New("sdk: not acquired")
}

// stubServer はトリガー/応答プロトコルのテスト用サーバー
type stubServer struct {
	listener net.Listener

	mu       sync.Mutex
	accepted int
	requests [][]byte
	closed   chan struct{}
}

// newStubServer は受信毎にreplyを呼び出すサーバーを起動する
//
// replyがfalseを返すと接続を閉じる。
func newStubServer(t *testing.T, reply func(conn net.Conn, request []byte) bool) *stubServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubServer{listener: listener, closed: make(chan struct{}, 8)}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			s.mu.Lock()
			s.accepted++
			s.mu.Unlock()

			go s.serve(conn, reply)
		}
	}()

	return s
}

func (s *stubServer) serve(conn net.Conn, reply func(conn net.Conn, request []byte) bool) {
	defer func() {
		_ = conn.Close()
		s.closed <- struct{}{}
	}()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		request := append([]byte(nil), buf[:n]...)
		s.mu.Lock()
		s.requests = append(s.requests, request)
		s.mu.Unlock()

		if !reply(conn, request) {
			return
		}
	}
}

// port はサーバーの待ち受けポートを返す
func (s *stubServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *stubServer) acceptedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *stubServer) receivedRequests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.requests...)
}

// waitClosed はサーバー側で接続が閉じられるのを待つ
func (s *stubServer) waitClosed(t *testing.T) {
	t.Helper()

	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("サーバー側で接続が閉じられませんでした")
	}
}

// replyWith は固定の応答を返すハンドラを作成する
func replyWith(response string) func(net.Conn, []byte) bool {
	return func(conn net.Conn, _ []byte) bool {
		_, err := conn.Write([]byte(response))
		return err == nil
	}
}

// triggerDescriptor はstubServerに接続するDescriptorを作成する
func triggerDescriptor(name string, port int) Descriptor {
	return Descriptor{Name: name, Type: TypeIV4, Host: "127.0.0.1", Port: port}
}

package camera

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// トリガー/応答プロトコルのメッセージ。既存のライン機器と互換性を保つため変更しないこと
const (
	TriggerRequest = "TRIGGER"
	TriggerAck     = "IMAGE_OK"
)

// replyBufferSize は応答として読み取る最大バイト数
const replyBufferSize = 1024

// triggerSocket はTCPトリガー/応答デバイス（IV2/IV3/IV4）のバックエンド
type triggerSocket struct {
	address string
	timeout time.Duration
}

func (b *triggerSocket) kind() Kind { return KindTriggerSocket }

func (b *triggerSocket) open(ctx context.Context) (handle, error) {
	dialer := net.Dialer{Timeout: b.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", b.address)
	if err != nil {
		return nil, err
	}

	return &socketHandle{conn: conn, timeout: b.timeout}, nil
}

// socketHandle はSession毎に1本のTCP接続を保持する
type socketHandle struct {
	conn    net.Conn
	timeout time.Duration
}

// capture はトリガーを送信して応答を1回読み取る
func (h *socketHandle) capture(_ context.Context) (frame, error) {
	if h.conn == nil {
		return frame{}, net.ErrClosed
	}

	if err := h.conn.SetDeadline(time.Now().Add(h.timeout)); err != nil {
		return frame{}, err
	}

	if _, err := h.conn.Write([]byte(TriggerRequest)); err != nil {
		return frame{}, err
	}

	buf := make([]byte, replyBufferSize)
	n, err := h.conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return frame{}, err
	}

	reply := buf[:n]
	if string(reply) == TriggerAck {
		return frame{ok: true, token: TriggerAck, reply: reply}, nil
	}

	// 想定外の応答（切断による空応答を含む）は画像なしとして扱う
	return frame{ok: false, reply: reply}, nil
}

func (h *socketHandle) close() error {
	if h.conn == nil {
		return nil
	}

	err := h.conn.Close()
	h.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

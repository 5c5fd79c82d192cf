package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 5 * time.Second

// NATSSink はRecordをNATSのsubjectへpublishする
//
// カメラ名を持つRecordは <subject>.<camera> に送る。
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// DialNATS はNATSに接続してNATSSinkを作成する
func DialNATS(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("linecam"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("NATSへの接続に失敗: %w", err)
	}

	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Subject はRecordの送信先subjectを返す
func (s *NATSSink) Subject(r Record) string {
	if r.Camera == "" {
		return s.subject
	}
	return s.subject + "." + r.Camera
}

func (s *NATSSink) Send(_ context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ペイロードのエンコードに失敗: %w", err)
	}

	if err := s.conn.Publish(s.Subject(r), payload); err != nil {
		return fmt.Errorf("NATSへのpublishに失敗: %w", err)
	}
	if err := s.conn.FlushTimeout(natsFlushTimeout); err != nil {
		return fmt.Errorf("NATSのflushに失敗: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

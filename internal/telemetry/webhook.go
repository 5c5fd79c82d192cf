package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// DefaultWebhookTimeout はWebhook送信のタイムアウト
const DefaultWebhookTimeout = 5 * time.Second

// WebhookSink はRecordをJSONとしてHTTP POSTする
//
// 検査結果のWebhookとワークフロー連携の両方で使う。
type WebhookSink struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookSink は新しいWebhookSinkを作成する
func NewWebhookSink(name, url string) *WebhookSink {
	return &WebhookSink{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: DefaultWebhookTimeout},
	}
}

func (s *WebhookSink) Name() string { return s.name }

func (s *WebhookSink) Send(ctx context.Context, r Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ペイロードのエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s へのPOSTに失敗: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s が異常なステータスを返しました: %d", s.name, resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const mqttTimeout = 5 * time.Second

// mqttPublisher はmqtt.Clientのうち送信に必要な部分
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink はRecordをMQTTトピックへpublishする
type MQTTSink struct {
	client  mqttPublisher
	topic   string
	timeout time.Duration
}

// DialMQTT はブローカーに接続してMQTTSinkを作成する
func DialMQTT(broker string, port int, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port)).
		SetClientID("linecam-" + uuid.NewString()[:8]).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("MQTTブローカーへの接続がタイムアウトしました: %s:%d", broker, port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTTブローカーへの接続に失敗: %w", err)
	}

	return newMQTTSink(client, topic), nil
}

func newMQTTSink(client mqttPublisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, timeout: mqttTimeout}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(_ context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ペイロードのエンコードに失敗: %w", err)
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("MQTTのpublishがタイムアウトしました: %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTTのpublishに失敗: %w", err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

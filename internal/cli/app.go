package cli

import (
	"errors"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"linecam/internal/camera"
	"linecam/internal/config"
	"linecam/internal/imagestore"
	"linecam/internal/inspection"
	"linecam/internal/logger"
	"linecam/internal/telemetry"
)

// app は設定から組み立てたコンポーネント一式
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	registry  *camera.Registry
	journal   *telemetry.Fanout
	publisher *telemetry.Fanout
	runner    *inspection.Runner
	logCloser io.Closer
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	// 環境変数 (LOG_LEVEL, DEBUG, LOG_OUTPUT) の上に設定ファイルの値を重ねる
	logCloser, err := logger.Init(logger.Merge(logger.DefaultConfig(), cfg.Logging))
	if err != nil {
		return nil, err
	}
	if opts.debug {
		logger.SetDebug(true)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger.WithComponent("linecam"),
		logCloser: logCloser,
	}

	a.journal, err = newJournal(filepath.Dir(cfg.LogPath), logger.WithComponent("journal"))
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	a.publisher = newPublisher(cfg, logger.WithComponent("publisher"))

	a.registry, err = camera.NewRegistry(cfg.Descriptors(),
		camera.WithEventSink(camera.MultiSink{
			camera.NewLogSink(logger.WithComponent("camera")),
			telemetry.NewEventSink(a.journal),
		}),
	)
	if err != nil {
		a.journal.Close()
		a.publisher.Close()
		logCloser.Close()
		return nil, err
	}

	a.runner = inspection.NewRunner(a.registry, imagestore.New(cfg.ImageOutputPath),
		inspection.WithProduct(cfg.SerialNumber, cfg.ModelName),
		inspection.WithPublisher(a.publisher),
		inspection.WithLogger(logger.WithComponent("inspection")),
	)

	a.logger.Info().
		Str("serial_number", cfg.SerialNumber).
		Str("model_name", cfg.ModelName).
		Int("cameras", a.registry.Len()).
		Int("publishers", a.publisher.Len()).
		Msg("設定を読み込みました")

	return a, nil
}

// newJournal はログディレクトリにCSVとJSON Linesのジャーナルを作成する
func newJournal(dir string, log zerolog.Logger) (*telemetry.Fanout, error) {
	csvSink, err := telemetry.NewCSVSink(dir)
	if err != nil {
		return nil, err
	}
	jsonlSink, err := telemetry.NewJSONLSink(dir)
	if err != nil {
		csvSink.Close()
		return nil, err
	}
	return telemetry.NewFanout(log, csvSink, jsonlSink), nil
}

// newPublisher は設定された検査結果の送信先を作成する
//
// ブローカーに接続できない送信先は警告を出して無効にする。
func newPublisher(cfg *config.Config, log zerolog.Logger) *telemetry.Fanout {
	publisher := telemetry.NewFanout(log)

	if url := cfg.Telemetry.WebhookURL; url != "" {
		publisher.Add(telemetry.NewWebhookSink("webhook", url))
	}
	if url := cfg.WorkflowURL; url != "" {
		publisher.Add(telemetry.NewWebhookSink("workflow", url))
	}

	if m := cfg.Telemetry.MQTT; m.Broker != "" {
		sink, err := telemetry.DialMQTT(m.Broker, m.Port, m.Topic)
		if err != nil {
			log.Warn().Err(err).Msg("MQTTへの送信を無効にします")
		} else {
			publisher.Add(sink)
		}
	}

	if n := cfg.Telemetry.NATS; n.URL != "" {
		sink, err := telemetry.DialNATS(n.URL, n.Subject)
		if err != nil {
			log.Warn().Err(err).Msg("NATSへの送信を無効にします")
		} else {
			publisher.Add(sink)
		}
	}

	return publisher
}

// Close は全カメラを解放し、送信先とログを閉じる
func (a *app) Close() error {
	if failed := a.runner.Shutdown(); failed > 0 {
		a.logger.Warn().Int("failed", failed).Msg("解放に失敗したカメラがあります")
	}

	err := errors.Join(a.publisher.Close(), a.journal.Close())
	return errors.Join(err, a.logCloser.Close())
}

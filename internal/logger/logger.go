// Package logger zerologによるJSON構造化ログを提供する
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config はログ出力の設定
type Config struct {
	Level      string `yaml:"level"`       // ログレベル (debug, info, warn, error)
	Debug      bool   `yaml:"debug"`       // trueの場合はdebugレベル
	Output     string `yaml:"output"`      // stderr（既定）または stdout
	File       string `yaml:"file"`        // ログファイル（空の場合は出力しない）
	TimeFormat string `yaml:"time_format"` // タイムスタンプの書式
}

var globalLogger zerolog.Logger

func init() {
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// DefaultConfig は環境変数から既定の設定を作成する
func DefaultConfig() Config {
	return Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Debug:  getEnvBoolOrDefault("DEBUG", false),
		Output: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
}

// Merge はbaseにoverrideで設定された項目を上書きした設定を返す
func Merge(base, override Config) Config {
	if override.Level != "" {
		base.Level = override.Level
	}
	if override.Debug {
		base.Debug = true
	}
	if override.Output != "" {
		base.Output = override.Output
	}
	if override.File != "" {
		base.File = override.File
	}
	if override.TimeFormat != "" {
		base.TimeFormat = override.TimeFormat
	}
	return base
}

// Init はグローバルロガーを初期化する
//
// コマンドの結果は標準出力に書くため、ログは明示しない限り標準エラーに出す。
// 返されるio.Closerはログファイルを閉じる。ファイル出力がない場合も非nil。
func Init(config Config) (io.Closer, error) {
	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("無効なログレベル: %w", err)
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	var closer io.Closer = nopCloser{}
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
		}

		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("ログファイルを開けません: %w", err)
		}

		output = zerolog.MultiLevelWriter(output, file)
		closer = file
	}

	globalLogger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = globalLogger

	return closer, nil
}

// SetDebug はdebugレベルの有効/無効を切り替える
func SetDebug(debug bool) {
	if debug {
		globalLogger = globalLogger.Level(zerolog.DebugLevel)
	} else {
		globalLogger = globalLogger.Level(zerolog.InfoLevel)
	}
	log.Logger = globalLogger
}

// WithComponent はcomponentフィールド付きのロガーを返す
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// NewTestLogger は出力を破棄するテスト用ロガーを返す
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"linecam/internal/camera"
	"linecam/internal/logger"
)

// EnvConfigPath は設定ファイルのパスを指定する環境変数
const EnvConfigPath = "LINECAM_CONFIG"

// ErrInvalidConfig は設定の検証に失敗したことを示す
var ErrInvalidConfig = errors.New("無効な設定")

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	SerialNumber    string `yaml:"serial_number" validate:"required"`
	ModelName       string `yaml:"model_name"` // Load時にSerialNumberから決定される
	ImageOutputPath string `yaml:"image_output_path" validate:"required"`
	LogPath         string `yaml:"log_path" validate:"required"`

	// バーコードスキャナー（任意）
	ScannerPort string `yaml:"scanner_port"`
	ScannerBaud int    `yaml:"scanner_baud" validate:"gte=0"`

	WorkflowURL string `yaml:"workflow_url" validate:"omitempty,url"`

	Cameras   []CameraConfig  `yaml:"cameras" validate:"required,min=1,unique=Name,dive"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   logger.Config   `yaml:"logging"`
}

// CameraConfig は個別カメラの設定
type CameraConfig struct {
	Name        string `yaml:"name" validate:"required,excludesall=/\\,ne=.,ne=.."` // 画像の保存先ディレクトリ名になる
	CameraType  string `yaml:"camera_type" validate:"required,oneof=USB IV2 IV3 IV4 VS"`
	DeviceIndex int    `yaml:"device_index" validate:"gte=0"` // USBのみ (/dev/videoN)
	IPAddress   string `yaml:"ip_address"`                    // IV系のみ。省略時は127.0.0.1
	Port        int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TelemetryConfig は検査結果の外部送信設定。空の項目は無効
type TelemetryConfig struct {
	WebhookURL string     `yaml:"webhook_url" validate:"omitempty,url"`
	MQTT       MQTTConfig `yaml:"mqtt"`
	NATS       NATSConfig `yaml:"nats"`
}

// MQTTConfig はMQTTブローカーへの送信設定
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Port   int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Topic  string `yaml:"topic" validate:"required_with=Broker"`
}

// NATSConfig はNATSへの送信設定
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

// Load は設定ファイルを読み込み、既定値と環境変数を適用して検証する
//
// pathが空の場合は環境変数LINECAM_CONFIGを参照する。
// JSONはYAMLのサブセットなので、JSON形式の設定ファイルもそのまま読める。
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, fmt.Errorf("設定ファイルが指定されていません（--config または %s）", EnvConfigPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	return Parse(data)
}

// Parse はYAML/JSONのバイト列から設定を作成する
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ModelName = SelectModel(cfg.SerialNumber)

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Telemetry.MQTT.Broker != "" && c.Telemetry.MQTT.Port == 0 {
		c.Telemetry.MQTT.Port = 1883
	}
	if c.Logging.File == "" {
		c.Logging.File = c.LogPath
	}

	for i := range c.Cameras {
		if c.Cameras[i].IPAddress == "" {
			c.Cameras[i].IPAddress = camera.DefaultHost
		}
	}
}

func (c *Config) applyEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if value := os.Getenv("PORT"); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			c.Server.Port = port
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateCamera, CameraConfig{})
	return v
}

// validateCamera はIV系カメラのポート番号を必須にする
func validateCamera(sl validator.StructLevel) {
	cam := sl.Current().Interface().(CameraConfig)

	kind, err := camera.KindForType(cam.CameraType)
	if err != nil {
		return // oneofで報告される
	}
	if kind == camera.KindTriggerSocket && cam.Port == 0 {
		sl.ReportError(cam.Port, "Port", "port", "required_for_trigger", cam.CameraType)
	}
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s (%s=%s, 値=%v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.ScannerPort != "" && c.ScannerBaud <= 0 {
		return fmt.Errorf("%w: scanner_baud は正の整数である必要があります", ErrInvalidConfig)
	}

	return nil
}

// Descriptors はカメラ設定をcamera.Descriptorに変換する
func (c *Config) Descriptors() []camera.Descriptor {
	descriptors := make([]camera.Descriptor, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		descriptors = append(descriptors, camera.Descriptor{
			Name:        cam.Name,
			Type:        cam.CameraType,
			DeviceIndex: cam.DeviceIndex,
			Host:        cam.IPAddress,
			Port:        cam.Port,
		})
	}
	return descriptors
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

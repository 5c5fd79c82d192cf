package camera

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Kind はバックエンドの種類を表す
type Kind string

const (
	KindFrameGrabber  Kind = "frame_grabber"  // ローカルのキャプチャデバイス
	KindTriggerSocket Kind = "trigger_socket" // TCPトリガー/応答デバイス
	KindSDKHandle     Kind = "sdk_handle"     // ベンダーSDKのハンドル
)

// 設定ファイルで使用するカメラ種別
const (
	TypeUSB = "USB"
	TypeIV2 = "IV2"
	TypeIV3 = "IV3"
	TypeIV4 = "IV4"
	TypeVS  = "VS"
)

// DefaultHost はトリガーソケットの既定の接続先
const DefaultHost = "127.0.0.1"

// KindForType はカメラ種別に対応するバックエンドの種類を返す
func KindForType(cameraType string) (Kind, error) {
	switch cameraType {
	case TypeUSB:
		return KindFrameGrabber, nil
	case TypeIV2, TypeIV3, TypeIV4:
		return KindTriggerSocket, nil
	case TypeVS:
		return KindSDKHandle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, cameraType)
	}
}

// State はSessionの接続状態を表す
type State string

const (
	StateDisconnected State = "disconnected" // 未接続
	StateConnected    State = "connected"    // 接続中
	// StateFaulted は予約済み。キャプチャ失敗ではこの状態に遷移しない
	StateFaulted State = "faulted"
)

// Descriptor は1台のカメラの検証済み設定
type Descriptor struct {
	Name        string // カメラ名（一意）
	Type        string // カメラ種別 (USB, IV2, IV3, IV4, VS)
	DeviceIndex int    // USB: ローカルデバイス番号
	Host        string // IV系: 接続先ホスト
	Port        int    // IV系: 接続先ポート
}

// Kind はDescriptorのバックエンドの種類を返す
func (d Descriptor) Kind() (Kind, error) {
	return KindForType(d.Type)
}

// Address はトリガーソケットの接続先アドレスを返す
func (d Descriptor) Address() string {
	host := d.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(d.Port))
}

// Result は1回のキャプチャ結果
//
// OKがfalseのResultはエラーではない。トリガーソケットが IMAGE_OK 以外を
// 返した場合など、通信は成功したが画像が生成されなかったことを表す。
type Result struct {
	ID         string    // キャプチャID
	Camera     string    // カメラ名
	Type       string    // カメラ種別
	Kind       Kind      // バックエンドの種類
	OK         bool      // 画像が生成されたか
	Token      string    // 結果トークン（IMAGE_OK など）
	Data       []byte    // 画素データ（USBのみ）
	Reply      []byte    // トリガーソケットの生の応答
	CapturedAt time.Time // キャプチャ時刻
}

// HasImage は画素データを持つかを返す
func (r Result) HasImage() bool {
	return len(r.Data) > 0
}

// FrameSource はローカルのキャプチャデバイスを開く
type FrameSource interface {
	Open(ctx context.Context, index int) (FrameReader, error)
}

// FrameReader は開かれたキャプチャデバイス
type FrameReader interface {
	// ReadFrame は1フレームを読み取る。読み取りに失敗した場合はエラーを返す
	ReadFrame(ctx context.Context) ([]byte, error)

	// Close はデバイスを解放する
	Close() error
}

// SDK はベンダーSDKとの境界
type SDK interface {
	// Acquire はSDKから不透明なトークンを取得する
	Acquire(ctx context.Context) (string, error)

	// Grab はトークンを使って撮影し、結果トークンを返す
	Grab(ctx context.Context, token string) (string, error)
}

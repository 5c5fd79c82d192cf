package camera

import (
	"context"
	"fmt"
	"time"
)

// DefaultSocketTimeout はトリガーソケットの接続・応答待ちのタイムアウト
const DefaultSocketTimeout = 5 * time.Second

// frame はバックエンドの1回分のキャプチャ結果
type frame struct {
	ok    bool
	token string
	data  []byte
	reply []byte
}

// backend はバックエンドの種類毎の接続方法を表す
//
// 実装は frameGrabber, triggerSocket, sdkHandle の3種類のみ。
type backend interface {
	kind() Kind
	open(ctx context.Context) (handle, error)
}

// handle は接続中のバックエンドリソース
//
// openで生成され、closeで破棄される。所有者は常に1つのSessionのみ。
type handle interface {
	capture(ctx context.Context) (frame, error)
	close() error
}

// backendOptions はバックエンド生成時の依存
type backendOptions struct {
	frameSource   FrameSource
	sdk           SDK
	socketTimeout time.Duration
}

func defaultBackendOptions() backendOptions {
	return backendOptions{
		frameSource:   NewV4L2Source(DefaultFrameWidth, DefaultFrameHeight),
		sdk:           NewMockSDK(),
		socketTimeout: DefaultSocketTimeout,
	}
}

// newBackend はDescriptorに対応するバックエンドを生成する
func newBackend(d Descriptor, opts backendOptions) (backend, error) {
	kind, err := d.Kind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFrameGrabber:
		return &frameGrabber{source: opts.frameSource, index: d.DeviceIndex}, nil
	case KindTriggerSocket:
		if d.Port <= 0 || d.Port > 65535 {
			return nil, fmt.Errorf("無効なポート番号: %d", d.Port)
		}
		return &triggerSocket{address: d.Address(), timeout: opts.socketTimeout}, nil
	case KindSDKHandle:
		return &sdkHandle{sdk: opts.sdk}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
}

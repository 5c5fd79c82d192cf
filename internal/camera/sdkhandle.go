package camera

import (
	"context"
)

// モックSDKが返すトークン
const (
	MockSDKToken  = "VS_SDK"
	MockSDKResult = "VS_IMAGE_MOCK"
)

// sdkHandle はベンダーSDK（VS）のバックエンド
type sdkHandle struct {
	sdk SDK
}

func (b *sdkHandle) kind() Kind { return KindSDKHandle }

func (b *sdkHandle) open(ctx context.Context) (handle, error) {
	token, err := b.sdk.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &sdkToken{sdk: b.sdk, token: token}, nil
}

// sdkToken はSDKから取得した不透明なトークン
type sdkToken struct {
	sdk   SDK
	token string
}

func (t *sdkToken) capture(ctx context.Context) (frame, error) {
	result, err := t.sdk.Grab(ctx, t.token)
	if err != nil {
		return frame{}, err
	}

	return frame{ok: true, token: result}, nil
}

// close は物理リソースを持たないため何もしない
func (t *sdkToken) close() error {
	t.token = ""
	return nil
}

// mockSDK は実機SDKの代わりに固定値を返すSDK実装
type mockSDK struct{}

// NewMockSDK は新しいモックSDKを作成する
func NewMockSDK() SDK {
	return mockSDK{}
}

func (mockSDK) Acquire(_ context.Context) (string, error) {
	return MockSDKToken, nil
}

func (mockSDK) Grab(_ context.Context, _ string) (string, error) {
	return MockSDKResult, nil
}

package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected は接続済みのSessionにConnectした場合に返される
	ErrAlreadyConnected = errors.New("カメラは既に接続されています")
	// ErrUnsupportedType は未知のカメラ種別
	ErrUnsupportedType = errors.New("サポートされていないカメラ種別")
	// ErrDeviceUnavailable はキャプチャデバイスを開けない場合に返される
	ErrDeviceUnavailable = errors.New("デバイスが利用できません")
	// ErrFrameRead はフレームの読み取りが成功しなかった場合に返される
	ErrFrameRead = errors.New("フレームの読み取りに失敗")
	// ErrDuplicateName はRegistryに同名のカメラが渡された場合に返される
	ErrDuplicateName = errors.New("カメラ名が重複しています")
	// ErrEmptyName はカメラ名が空の場合に返される
	ErrEmptyName = errors.New("カメラ名が空です")
)

// ConnectError はバックエンドを開けなかったことを表す
type ConnectError struct {
	Camera string
	Kind   Kind
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("カメラ %s (%s) の接続に失敗: %v", e.Camera, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NotConnectedError は未接続のSessionでキャプチャしようとしたことを表す
type NotConnectedError struct {
	Camera string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("カメラ %s は接続されていません", e.Camera)
}

// CaptureError はキャプチャ中の通信・デバイス障害を表す
//
// 想定外の応答はCaptureErrorではなく、OK=false のResultとして返される。
type CaptureError struct {
	Camera string
	Kind   Kind
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("カメラ %s (%s) のキャプチャに失敗: %v", e.Camera, e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// UnknownCameraError はRegistryに存在しない名前が指定されたことを表す
type UnknownCameraError struct {
	Name string
}

func (e *UnknownCameraError) Error() string {
	return fmt.Sprintf("カメラが見つかりません: %s", e.Name)
}

// IsUnknownCamera はerrがUnknownCameraErrorを含むかを返す
func IsUnknownCamera(err error) bool {
	var target *UnknownCameraError
	return errors.As(err, &target)
}

// IsNotConnected はerrがNotConnectedErrorを含むかを返す
func IsNotConnected(err error) bool {
	var target *NotConnectedError
	return errors.As(err, &target)
}

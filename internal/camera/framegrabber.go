package camera

import (
	"context"
	"fmt"
)

// frameGrabber はローカルキャプチャデバイス（USBカメラ）のバックエンド
type frameGrabber struct {
	source FrameSource
	index  int
}

func (b *frameGrabber) kind() Kind { return KindFrameGrabber }

func (b *frameGrabber) open(ctx context.Context) (handle, error) {
	if b.source == nil {
		return nil, fmt.Errorf("%w: フレームソースが設定されていません", ErrDeviceUnavailable)
	}

	reader, err := b.source.Open(ctx, b.index)
	if err != nil {
		return nil, err
	}

	return &grabberHandle{reader: reader}, nil
}

// grabberHandle は開かれたキャプチャデバイスを保持する
type grabberHandle struct {
	reader FrameReader
}

func (h *grabberHandle) capture(ctx context.Context) (frame, error) {
	data, err := h.reader.ReadFrame(ctx)
	if err != nil {
		return frame{}, err
	}
	if len(data) == 0 {
		return frame{}, ErrFrameRead
	}

	return frame{ok: true, data: data}, nil
}

func (h *grabberHandle) close() error {
	if h.reader == nil {
		return nil
	}

	err := h.reader.Close()
	h.reader = nil
	return err
}

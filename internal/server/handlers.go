package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"linecam/internal/camera"
	"linecam/internal/config"
	"linecam/internal/inspection"
)

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status       string    `json:"status"`
	SerialNumber string    `json:"serial_number"`
	ModelName    string    `json:"model_name"`
	Cameras      int       `json:"cameras"`
	Connected    int       `json:"connected"`
	Uptime       string    `json:"uptime"`
	Timestamp    time.Time `json:"timestamp"`
}

// CameraInfo はカメラ1台の情報
type CameraInfo struct {
	Name    string       `json:"name"`
	Type    string       `json:"camera_type"`
	Kind    camera.Kind  `json:"kind"`
	State   camera.State `json:"state"`
	Address string       `json:"address,omitempty"`
}

// CamerasResponse はカメラ一覧の応答
type CamerasResponse struct {
	Cameras []CameraInfo `json:"cameras"`
}

// CaptureResponse はキャプチャ結果の応答
type CaptureResponse struct {
	ID         string    `json:"id"`
	Camera     string    `json:"camera"`
	OK         bool      `json:"ok"`
	Token      string    `json:"token,omitempty"`
	Bytes      int       `json:"bytes"`
	CapturedAt time.Time `json:"captured_at"`
}

// ErrorResponse はエラーの応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CameraHandler はカメラAPIのハンドラ
type CameraHandler struct {
	config   *config.Config
	registry *camera.Registry
	runner   *inspection.Runner
	started  time.Time
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *CameraHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *CameraHandler) GetStatus(c *gin.Context) {
	connected := 0
	for _, status := range h.registry.Statuses() {
		if status.State == camera.StateConnected {
			connected++
		}
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:       "running",
		SerialNumber: h.config.SerialNumber,
		ModelName:    h.config.ModelName,
		Cameras:      h.registry.Len(),
		Connected:    connected,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Timestamp:    time.Now(),
	})
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *CameraHandler) GetCameras(c *gin.Context) {
	statuses := h.registry.Statuses()
	cameras := make([]CameraInfo, 0, len(statuses))
	for _, status := range statuses {
		cameras = append(cameras, h.cameraInfo(status))
	}

	c.JSON(http.StatusOK, CamerasResponse{Cameras: cameras})
}

// GetCamera はカメラ1台の情報取得エンドポイントの実装
func (h *CameraHandler) GetCamera(c *gin.Context) {
	name := c.Param("name")
	state, err := h.registry.State(name)
	if err != nil {
		writeError(c, err)
		return
	}

	d, _ := h.registry.Descriptor(name)
	kind, _ := d.Kind()
	c.JSON(http.StatusOK, h.cameraInfo(camera.Status{Name: name, Type: d.Type, Kind: kind, State: state}))
}

// ConnectCamera はカメラ接続エンドポイントの実装
func (h *CameraHandler) ConnectCamera(c *gin.Context) {
	name := c.Param("name")
	if err := h.registry.Connect(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c, name)
}

// CaptureCamera はキャプチャエンドポイントの実装
//
// format=jpeg を指定し、画素データがある場合は画像そのものを返す。
func (h *CameraHandler) CaptureCamera(c *gin.Context) {
	name := c.Param("name")
	result, err := h.registry.Capture(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("format") == "jpeg" && result.HasImage() {
		c.Data(http.StatusOK, "image/jpeg", result.Data)
		return
	}

	c.JSON(http.StatusOK, CaptureResponse{
		ID:         result.ID,
		Camera:     result.Camera,
		OK:         result.OK,
		Token:      result.Token,
		Bytes:      len(result.Data),
		CapturedAt: result.CapturedAt,
	})
}

// ReleaseCamera はカメラ解放エンドポイントの実装
func (h *CameraHandler) ReleaseCamera(c *gin.Context) {
	name := c.Param("name")
	if err := h.registry.Release(name); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c, name)
}

// RunInspection は全カメラの検査エンドポイントの実装
func (h *CameraHandler) RunInspection(c *gin.Context) {
	report, err := h.runner.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "inspection_aborted",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     report.OK(),
		"failed": report.Failed(),
		"report": report,
	})
}

func (h *CameraHandler) respondState(c *gin.Context, name string) {
	state, err := h.registry.State(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "state": state})
}

func (h *CameraHandler) cameraInfo(status camera.Status) CameraInfo {
	info := CameraInfo{
		Name:  status.Name,
		Type:  status.Type,
		Kind:  status.Kind,
		State: status.State,
	}
	if status.Kind == camera.KindTriggerSocket {
		if d, err := h.registry.Descriptor(status.Name); err == nil {
			info.Address = d.Address()
		}
	}
	return info
}

// writeError はカメラのエラーをHTTPステータスに変換して返す
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	var (
		connectErr *camera.ConnectError
		captureErr *camera.CaptureError
	)
	switch {
	case camera.IsUnknownCamera(err):
		status, code = http.StatusNotFound, "camera_not_found"
	case camera.IsNotConnected(err):
		status, code = http.StatusConflict, "camera_not_connected"
	case errors.Is(err, camera.ErrAlreadyConnected):
		status, code = http.StatusConflict, "camera_already_connected"
	case errors.As(err, &connectErr):
		status, code = http.StatusBadGateway, "connect_failed"
	case errors.As(err, &captureErr):
		status, code = http.StatusBadGateway, "capture_failed"
	}

	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// Package cloudphone contains the concrete provider adapters behind the
// devicegateway capability contract. Each adapter normalizes one
// external device-control API; credentials come from configuration and
// an adapter with no credentials is never constructed.
package cloudphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

const (
	// SkyfoneName is the provider name devices reference.
	SkyfoneName = "skyfone"

	skyfoneRequestTimeout  = 15 * time.Second
	skyfoneMaxResponseSize = 4 << 20
)

// skyfoneStatusMap maps Skyfone's native status vocabulary onto the
// normalized enum. The map is total: anything absent reads as unknown.
var skyfoneStatusMap = map[string]devicegateway.DeviceStatus{
	"RUNNING":       devicegateway.StatusOnline,
	"STOPPED":       devicegateway.StatusOffline,
	"BOOTING":       devicegateway.StatusStarting,
	"SHUTTING_DOWN": devicegateway.StatusStopping,
}

// SkyfoneAdapter drives the Skyfone cloud phone REST API. Auth is a
// long-lived bearer token; endpoints are plain GET/POST with JSON
// bodies and the provider exposes a native screenshot endpoint that
// returns a download URL.
type SkyfoneAdapter struct {
	cfg        config.SkyfoneConfig
	httpClient *http.Client
	logger     logger.Interface
}

var _ devicegateway.Adapter = (*SkyfoneAdapter)(nil)

func NewSkyfoneAdapter(cfg config.SkyfoneConfig, log logger.Interface) *SkyfoneAdapter {
	return &SkyfoneAdapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: skyfoneRequestTimeout,
		},
		logger: log.Named("skyfone"),
	}
}

func (a *SkyfoneAdapter) Name() string {
	return SkyfoneName
}

type skyfoneDevice struct {
	DeviceID string `json:"device_id"`
	Alias    string `json:"alias"`
	State    string `json:"state"`
	OSImage  string `json:"os_image"`
	PublicIP string `json:"public_ip"`
}

type skyfoneListResponse struct {
	Devices []skyfoneDevice `json:"devices"`
}

func (a *SkyfoneAdapter) ListDevices(ctx context.Context) []devicegateway.DeviceInfo {
	var resp skyfoneListResponse
	if err := a.get(ctx, "/v1/devices", &resp); err != nil {
		a.logger.Warnw("failed to list devices", "error", err)
		return nil
	}

	infos := make([]devicegateway.DeviceInfo, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		status, ok := skyfoneStatusMap[d.State]
		if !ok {
			status = devicegateway.StatusUnknown
		}
		infos = append(infos, devicegateway.DeviceInfo{
			ID:     d.DeviceID,
			Name:   d.Alias,
			Status: status,
			OS:     d.OSImage,
			IP:     d.PublicIP,
		})
	}
	return infos
}

type skyfoneStatusResponse struct {
	State string `json:"state"`
}

func (a *SkyfoneAdapter) GetDeviceStatus(ctx context.Context, deviceID string) devicegateway.StatusResult {
	var resp skyfoneStatusResponse
	if err := a.get(ctx, "/v1/devices/"+deviceID, &resp); err != nil {
		a.logger.Warnw("failed to get device status", "device_id", deviceID, "error", err)
		return devicegateway.StatusResult{Online: false, Native: "error"}
	}

	status, ok := skyfoneStatusMap[resp.State]
	if !ok {
		status = devicegateway.StatusUnknown
	}
	return devicegateway.StatusResult{
		Online: status == devicegateway.StatusOnline,
		Native: resp.State,
	}
}

func (a *SkyfoneAdapter) StartDevice(ctx context.Context, deviceID string) bool {
	if err := a.post(ctx, "/v1/devices/"+deviceID+"/start", nil, nil); err != nil {
		a.logger.Warnw("failed to start device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

func (a *SkyfoneAdapter) StopDevice(ctx context.Context, deviceID string) bool {
	if err := a.post(ctx, "/v1/devices/"+deviceID+"/stop", nil, nil); err != nil {
		a.logger.Warnw("failed to stop device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

func (a *SkyfoneAdapter) LaunchApp(ctx context.Context, deviceID, packageID string) bool {
	body := map[string]any{"package": packageID}
	if err := a.post(ctx, "/v1/devices/"+deviceID+"/apps/launch", body, nil); err != nil {
		a.logger.Warnw("failed to launch app", "device_id", deviceID, "package", packageID, "error", err)
		return false
	}
	return true
}

type skyfoneScreenshotResponse struct {
	DownloadURL string `json:"download_url"`
}

func (a *SkyfoneAdapter) TakeScreenshot(ctx context.Context, deviceID string) (*devicegateway.Screenshot, error) {
	var resp skyfoneScreenshotResponse
	if err := a.post(ctx, "/v1/devices/"+deviceID+"/screenshot", nil, &resp); err != nil {
		return nil, fmt.Errorf("screenshot request failed: %w", err)
	}
	if resp.DownloadURL == "" {
		return nil, fmt.Errorf("screenshot response missing download URL")
	}
	return &devicegateway.Screenshot{URL: resp.DownloadURL}, nil
}

type skyfoneCommandResponse struct {
	Output string `json:"output"`
}

func (a *SkyfoneAdapter) ExecuteCommand(ctx context.Context, deviceID, command string) (string, error) {
	body := map[string]any{"command": command}
	var resp skyfoneCommandResponse
	if err := a.post(ctx, "/v1/devices/"+deviceID+"/adb", body, &resp); err != nil {
		return "", fmt.Errorf("command execution failed: %w", err)
	}
	return resp.Output, nil
}

func (a *SkyfoneAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req, out)
}

func (a *SkyfoneAdapter) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBase+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.do(req, out)
}

func (a *SkyfoneAdapter) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, skyfoneMaxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

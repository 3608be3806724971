package cloudphone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

const (
	// PhantomixName is the provider name devices reference.
	PhantomixName = "phantomix"

	phantomixRequestTimeout  = 20 * time.Second
	phantomixMaxResponseSize = 8 << 20
)

// phantomixStatusMap maps Phantomix's numeric state codes onto the
// normalized enum.
var phantomixStatusMap = map[int]devicegateway.DeviceStatus{
	0: devicegateway.StatusOffline,
	1: devicegateway.StatusOnline,
	2: devicegateway.StatusStarting,
	3: devicegateway.StatusStopping,
}

// PhantomixAdapter drives the Phantomix cloud phone API. The API is
// POST-only RPC over a single endpoint family, authenticated with a
// static X-API-Key header. Phantomix has no first-class screenshot or
// launch endpoints; both are synthesized through its remote shell.
type PhantomixAdapter struct {
	cfg        config.PhantomixConfig
	httpClient *http.Client
	logger     logger.Interface
}

var _ devicegateway.Adapter = (*PhantomixAdapter)(nil)

func NewPhantomixAdapter(cfg config.PhantomixConfig, log logger.Interface) *PhantomixAdapter {
	return &PhantomixAdapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: phantomixRequestTimeout,
		},
		logger: log.Named("phantomix"),
	}
}

func (a *PhantomixAdapter) Name() string {
	return PhantomixName
}

type phantomixEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type phantomixDevice struct {
	InstanceID string `json:"instance_id"`
	Label      string `json:"label"`
	State      int    `json:"state"`
	Image      string `json:"image"`
	IP         string `json:"ip"`
}

func (a *PhantomixAdapter) ListDevices(ctx context.Context) []devicegateway.DeviceInfo {
	var devices []phantomixDevice
	if err := a.call(ctx, "instance.list", nil, &devices); err != nil {
		a.logger.Warnw("failed to list devices", "error", err)
		return nil
	}

	infos := make([]devicegateway.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		status, ok := phantomixStatusMap[d.State]
		if !ok {
			status = devicegateway.StatusUnknown
		}
		infos = append(infos, devicegateway.DeviceInfo{
			ID:     d.InstanceID,
			Name:   d.Label,
			Status: status,
			OS:     d.Image,
			IP:     d.IP,
		})
	}
	return infos
}

type phantomixStateData struct {
	State int `json:"state"`
}

func (a *PhantomixAdapter) GetDeviceStatus(ctx context.Context, deviceID string) devicegateway.StatusResult {
	var data phantomixStateData
	params := map[string]any{"instance_id": deviceID}
	if err := a.call(ctx, "instance.state", params, &data); err != nil {
		a.logger.Warnw("failed to get device status", "device_id", deviceID, "error", err)
		return devicegateway.StatusResult{Online: false, Native: "error"}
	}

	status, ok := phantomixStatusMap[data.State]
	if !ok {
		status = devicegateway.StatusUnknown
	}
	return devicegateway.StatusResult{
		Online: status == devicegateway.StatusOnline,
		Native: status.String(),
	}
}

func (a *PhantomixAdapter) StartDevice(ctx context.Context, deviceID string) bool {
	params := map[string]any{"instance_id": deviceID}
	if err := a.call(ctx, "instance.start", params, nil); err != nil {
		a.logger.Warnw("failed to start device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

func (a *PhantomixAdapter) StopDevice(ctx context.Context, deviceID string) bool {
	params := map[string]any{"instance_id": deviceID}
	if err := a.call(ctx, "instance.stop", params, nil); err != nil {
		a.logger.Warnw("failed to stop device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

// LaunchApp is synthesized through the remote shell because Phantomix
// has no launch endpoint. monkey with a single event is the stock way
// to fire an app's launcher intent without knowing the activity name.
func (a *PhantomixAdapter) LaunchApp(ctx context.Context, deviceID, packageID string) bool {
	out, err := a.ExecuteCommand(ctx, deviceID, "monkey -p "+packageID+" -c android.intent.category.LAUNCHER 1")
	if err != nil {
		a.logger.Warnw("failed to launch app", "device_id", deviceID, "package", packageID, "error", err)
		return false
	}
	if strings.Contains(out, "No activities found") {
		a.logger.Warnw("launch target not installed", "device_id", deviceID, "package", packageID)
		return false
	}
	return true
}

// TakeScreenshot is synthesized through the remote shell: screencap to
// stdout, base64-encoded so it survives the text transport.
func (a *PhantomixAdapter) TakeScreenshot(ctx context.Context, deviceID string) (*devicegateway.Screenshot, error) {
	out, err := a.ExecuteCommand(ctx, deviceID, "screencap -p | base64 -w 0")
	if err != nil {
		return nil, fmt.Errorf("screenshot command failed: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot command returned no data")
	}
	return &devicegateway.Screenshot{Data: data}, nil
}

type phantomixShellData struct {
	Output string `json:"output"`
}

func (a *PhantomixAdapter) ExecuteCommand(ctx context.Context, deviceID, command string) (string, error) {
	var data phantomixShellData
	params := map[string]any{
		"instance_id": deviceID,
		"cmd":         command,
	}
	if err := a.call(ctx, "instance.shell", params, &data); err != nil {
		return "", fmt.Errorf("command execution failed: %w", err)
	}
	return data.Output, nil
}

// call performs one RPC round trip. Every method is a POST to the same
// endpoint with a method name and params; business failures arrive as a
// non-zero envelope code on an HTTP 200.
func (a *PhantomixAdapter) call(ctx context.Context, method string, params map[string]any, out any) error {
	payload := map[string]any{"method": method}
	if params != nil {
		payload["params"] = params
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBase+"/api/v2/rpc", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope phantomixEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, phantomixMaxResponseSize)).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("api error %d: %s", envelope.Code, envelope.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

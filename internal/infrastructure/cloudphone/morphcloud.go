package cloudphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

const (
	// MorphCloudName is the provider name devices reference.
	MorphCloudName = "morphcloud"

	morphRequestTimeout  = 15 * time.Second
	morphMaxResponseSize = 8 << 20

	// Session tokens are refreshed this long before the provider-reported
	// expiry, so an in-flight request never rides an about-to-die token.
	morphTokenExpiryMargin = 60 * time.Second
)

// morphStatusMap maps MorphCloud's native status vocabulary onto the
// normalized enum.
var morphStatusMap = map[string]devicegateway.DeviceStatus{
	"ACTIVE":    devicegateway.StatusOnline,
	"INACTIVE":  devicegateway.StatusOffline,
	"PENDING":   devicegateway.StatusStarting,
	"RELEASING": devicegateway.StatusStopping,
}

// MorphCloudAdapter drives the MorphCloud phone farm API. Auth is a
// two-step scheme: the static access/secret key pair is exchanged for a
// short-lived session token, which authenticates every other call. The
// token is cached until shortly before expiry; refresh is single-flighted
// to prevent a stampede when many captures race an expired token.
type MorphCloudAdapter struct {
	cfg        config.MorphCloudConfig
	httpClient *http.Client
	logger     logger.Interface

	tokenMu      sync.RWMutex
	token        string
	tokenExpires time.Time
	tokenGroup   singleflight.Group
}

var _ devicegateway.Adapter = (*MorphCloudAdapter)(nil)

func NewMorphCloudAdapter(cfg config.MorphCloudConfig, log logger.Interface) *MorphCloudAdapter {
	return &MorphCloudAdapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: morphRequestTimeout,
		},
		logger: log.Named("morphcloud"),
	}
}

func (a *MorphCloudAdapter) Name() string {
	return MorphCloudName
}

type morphAuthResponse struct {
	SessionToken string `json:"session_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// sessionToken returns a valid session token, refreshing through
// singleflight when the cached one is absent or about to expire.
func (a *MorphCloudAdapter) sessionToken(ctx context.Context) (string, error) {
	a.tokenMu.RLock()
	if a.token != "" && time.Now().Before(a.tokenExpires.Add(-morphTokenExpiryMargin)) {
		token := a.token
		a.tokenMu.RUnlock()
		return token, nil
	}
	a.tokenMu.RUnlock()

	result, err, _ := a.tokenGroup.Do("session_token", func() (any, error) {
		// Double-check inside singleflight; another goroutine may have
		// refreshed while this one waited.
		a.tokenMu.RLock()
		if a.token != "" && time.Now().Before(a.tokenExpires.Add(-morphTokenExpiryMargin)) {
			token := a.token
			a.tokenMu.RUnlock()
			return token, nil
		}
		a.tokenMu.RUnlock()

		return a.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (a *MorphCloudAdapter) fetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]any{
		"access_key": a.cfg.AccessKey,
		"secret_key": a.cfg.SecretKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBase+"/auth/session", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth rejected with status code: %d", resp.StatusCode)
	}

	var auth morphAuthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, morphMaxResponseSize)).Decode(&auth); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if auth.SessionToken == "" {
		return "", fmt.Errorf("auth response missing session token")
	}

	a.tokenMu.Lock()
	a.token = auth.SessionToken
	a.tokenExpires = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	a.tokenMu.Unlock()

	a.logger.Debugw("session token refreshed", "expires_in", auth.ExpiresIn)
	return auth.SessionToken, nil
}

type morphDevice struct {
	PhoneID string `json:"phone_id"`
	Label   string `json:"label"`
	Status  string `json:"status"`
	Android string `json:"android_version"`
	IP      string `json:"ip_address"`
}

type morphListResponse struct {
	Phones []morphDevice `json:"phones"`
}

func (a *MorphCloudAdapter) ListDevices(ctx context.Context) []devicegateway.DeviceInfo {
	var resp morphListResponse
	if err := a.getJSON(ctx, "/v1/phones", &resp); err != nil {
		a.logger.Warnw("failed to list devices", "error", err)
		return nil
	}

	infos := make([]devicegateway.DeviceInfo, 0, len(resp.Phones))
	for _, p := range resp.Phones {
		status, ok := morphStatusMap[p.Status]
		if !ok {
			status = devicegateway.StatusUnknown
		}
		infos = append(infos, devicegateway.DeviceInfo{
			ID:     p.PhoneID,
			Name:   p.Label,
			Status: status,
			OS:     p.Android,
			IP:     p.IP,
		})
	}
	return infos
}

type morphStatusResponse struct {
	Status string `json:"status"`
}

func (a *MorphCloudAdapter) GetDeviceStatus(ctx context.Context, deviceID string) devicegateway.StatusResult {
	var resp morphStatusResponse
	if err := a.getJSON(ctx, "/v1/phones/"+deviceID, &resp); err != nil {
		a.logger.Warnw("failed to get device status", "device_id", deviceID, "error", err)
		return devicegateway.StatusResult{Online: false, Native: "error"}
	}

	status, ok := morphStatusMap[resp.Status]
	if !ok {
		status = devicegateway.StatusUnknown
	}
	return devicegateway.StatusResult{
		Online: status == devicegateway.StatusOnline,
		Native: resp.Status,
	}
}

func (a *MorphCloudAdapter) StartDevice(ctx context.Context, deviceID string) bool {
	if err := a.postJSON(ctx, "/v1/phones/"+deviceID+"/power/on", nil, nil); err != nil {
		a.logger.Warnw("failed to start device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

func (a *MorphCloudAdapter) StopDevice(ctx context.Context, deviceID string) bool {
	if err := a.postJSON(ctx, "/v1/phones/"+deviceID+"/power/off", nil, nil); err != nil {
		a.logger.Warnw("failed to stop device", "device_id", deviceID, "error", err)
		return false
	}
	return true
}

func (a *MorphCloudAdapter) LaunchApp(ctx context.Context, deviceID, packageID string) bool {
	body := map[string]any{"package_name": packageID}
	if err := a.postJSON(ctx, "/v1/phones/"+deviceID+"/launch", body, nil); err != nil {
		a.logger.Warnw("failed to launch app", "device_id", deviceID, "package", packageID, "error", err)
		return false
	}
	return true
}

// TakeScreenshot returns the raw PNG body of the provider's native
// screenshot endpoint.
func (a *MorphCloudAdapter) TakeScreenshot(ctx context.Context, deviceID string) (*devicegateway.Screenshot, error) {
	token, err := a.sessionToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain session token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBase+"/v1/phones/"+deviceID+"/screenshot", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Session-Token", token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screenshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, morphMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot response was empty")
	}
	return &devicegateway.Screenshot{Data: data}, nil
}

type morphShellResponse struct {
	Stdout string `json:"stdout"`
}

func (a *MorphCloudAdapter) ExecuteCommand(ctx context.Context, deviceID, command string) (string, error) {
	body := map[string]any{"command": command}
	var resp morphShellResponse
	if err := a.postJSON(ctx, "/v1/phones/"+deviceID+"/shell", body, &resp); err != nil {
		return "", fmt.Errorf("command execution failed: %w", err)
	}
	return resp.Stdout, nil
}

func (a *MorphCloudAdapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return a.doJSON(ctx, req, out)
}

func (a *MorphCloudAdapter) postJSON(ctx context.Context, path string, body, out any) error {
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
	return a.doJSON(ctx, req, out)
}

func (a *MorphCloudAdapter) doJSON(ctx context.Context, req *http.Request, out any) error {
	token, err := a.sessionToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain session token: %w", err)
	}
	req.Header.Set("X-Session-Token", token)

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
	if err := json.NewDecoder(io.LimitReader(resp.Body, morphMaxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Package devicegateway defines the capability contract every cloud
// phone provider adapter must satisfy. The contract normalizes
// outcomes, not transport: each provider's auth scheme, verb shape, and
// native endpoints are adapter-internal.
package devicegateway

import "context"

// DeviceStatus is the normalized runtime status of a provider-hosted
// device. Adapters map every provider-native status code onto one of
// these five values; an unrecognized native code maps to StatusUnknown,
// never an error.
type DeviceStatus string

const (
	StatusOnline   DeviceStatus = "online"
	StatusOffline  DeviceStatus = "offline"
	StatusStarting DeviceStatus = "starting"
	StatusStopping DeviceStatus = "stopping"
	StatusUnknown  DeviceStatus = "unknown"
)

func (s DeviceStatus) String() string {
	return string(s)
}

// DeviceInfo is a provider-side device listing entry with best-effort
// metadata.
type DeviceInfo struct {
	ID     string
	Name   string
	Status DeviceStatus
	OS     string
	IP     string
}

// StatusResult reports a single device's runtime state. On transport
// failure adapters return {Online: false, Native: "error"}; whether
// that is a genuinely offline device or a blip is the caller's retry
// policy to decide.
type StatusResult struct {
	Online bool
	Native string
}

// Screenshot carries either raw image bytes or a remote URL to fetch
// the image from; adapters never return both empty on success.
type Screenshot struct {
	Data []byte
	URL  string
}

// Adapter is the shared capability contract over one provider API.
// Operations are independently fallible; ListDevices, StartDevice and
// StopDevice log failures and report them as empty/false results rather
// than errors, because their callers use them for best-effort work that
// must not abort a larger operation.
type Adapter interface {
	// Name returns the provider name this adapter serves.
	Name() string

	// ListDevices returns the provider's device inventory. On transport
	// or auth failure it returns an empty slice.
	ListDevices(ctx context.Context) []DeviceInfo

	// GetDeviceStatus reports a device's runtime state.
	GetDeviceStatus(ctx context.Context, deviceID string) StatusResult

	// StartDevice requests power-on; false means the request failed.
	StartDevice(ctx context.Context, deviceID string) bool

	// StopDevice requests power-off; false means the request failed.
	StopDevice(ctx context.Context, deviceID string) bool

	// LaunchApp starts an application by package identifier.
	LaunchApp(ctx context.Context, deviceID, packageID string) bool

	// TakeScreenshot captures the device screen.
	TakeScreenshot(ctx context.Context, deviceID string) (*Screenshot, error)

	// ExecuteCommand runs a provider-specific remote command and returns
	// its captured output. Adapters without first-class screenshot or
	// launch primitives synthesize those through this operation.
	ExecuteCommand(ctx context.Context, deviceID, command string) (string, error)
}

package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/logger"
)

// fakeAdapter scripts per-call outcomes and records the command stream.
type fakeAdapter struct {
	statuses      []devicegateway.StatusResult
	statusCalls   int
	startOK       bool
	startCalls    int
	launchOK      bool
	launchCalls   int
	commandErr    error
	commands      []string
	screenshot    *devicegateway.Screenshot
	screenshotErr error
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ListDevices(ctx context.Context) []devicegateway.DeviceInfo { return nil }

func (f *fakeAdapter) GetDeviceStatus(ctx context.Context, deviceID string) devicegateway.StatusResult {
	i := f.statusCalls
	f.statusCalls++
	if i >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1]
	}
	return f.statuses[i]
}

func (f *fakeAdapter) StartDevice(ctx context.Context, deviceID string) bool {
	f.startCalls++
	return f.startOK
}

func (f *fakeAdapter) StopDevice(ctx context.Context, deviceID string) bool { return true }

func (f *fakeAdapter) LaunchApp(ctx context.Context, deviceID, packageID string) bool {
	f.launchCalls++
	return f.launchOK
}

func (f *fakeAdapter) TakeScreenshot(ctx context.Context, deviceID string) (*devicegateway.Screenshot, error) {
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return f.screenshot, nil
}

func (f *fakeAdapter) ExecuteCommand(ctx context.Context, deviceID, command string) (string, error) {
	f.commands = append(f.commands, command)
	return "", f.commandErr
}

func online() devicegateway.StatusResult {
	return devicegateway.StatusResult{Online: true, Native: "RUNNING"}
}

func offline() devicegateway.StatusResult {
	return devicegateway.StatusResult{Online: false, Native: "STOPPED"}
}

func newTestOrchestrator(t *testing.T, adapter devicegateway.Adapter) *Orchestrator {
	t.Helper()
	registry := devicegateway.NewRegistry()
	registry.Register(adapter)
	o := NewOrchestrator(registry, "de.shippingapp.android", 0, 0, logger.NewLogger())

	// Strip the inter-step settle delays so tests run instantly.
	for i := range o.script.Steps {
		o.script.Steps[i].Delay = 0
	}
	return o
}

func TestOrchestratorCapture(t *testing.T) {
	t.Run("online device goes straight through", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses:   []devicegateway.StatusResult{online()},
			launchOK:   true,
			screenshot: &devicegateway.Screenshot{Data: []byte("png")},
		}
		o := newTestOrchestrator(t, adapter)

		shot, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), shot.Data)
		assert.Zero(t, adapter.startCalls)
		assert.Equal(t, 1, adapter.launchCalls)
		assert.Empty(t, adapter.commands)
	})

	t.Run("offline device is powered on and rechecked once", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses:   []devicegateway.StatusResult{offline(), online()},
			startOK:    true,
			launchOK:   true,
			screenshot: &devicegateway.Screenshot{Data: []byte("png")},
		}
		o := newTestOrchestrator(t, adapter)

		_, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		require.NoError(t, err)
		assert.Equal(t, 1, adapter.startCalls)
		assert.Equal(t, 2, adapter.statusCalls)
	})

	t.Run("power-on failure never launches the app", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses: []devicegateway.StatusResult{offline()},
			startOK:  false,
		}
		o := newTestOrchestrator(t, adapter)

		_, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		assert.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Zero(t, adapter.launchCalls)
	})

	t.Run("device still offline after settle", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses: []devicegateway.StatusResult{offline(), offline()},
			startOK:  true,
		}
		o := newTestOrchestrator(t, adapter)

		_, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		assert.ErrorIs(t, err, ErrDeviceNotReady)
		assert.Equal(t, 2, adapter.statusCalls)
		assert.Zero(t, adapter.launchCalls)
	})

	t.Run("launch failure is terminal", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses: []devicegateway.StatusResult{online()},
			launchOK: false,
		}
		o := newTestOrchestrator(t, adapter)

		_, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		assert.ErrorIs(t, err, ErrLaunchFailed)
	})

	t.Run("screenshot failure wraps the sentinel", func(t *testing.T) {
		adapter := &fakeAdapter{
			statuses:      []devicegateway.StatusResult{online()},
			launchOK:      true,
			screenshotErr: errors.New("capture endpoint 500"),
		}
		o := newTestOrchestrator(t, adapter)

		_, err := o.Capture(context.Background(), Request{Provider: "fake", ProviderDeviceID: "d1"})
		assert.ErrorIs(t, err, ErrScreenshotFailed)
	})

	t.Run("unknown provider", func(t *testing.T) {
		o := newTestOrchestrator(t, &fakeAdapter{statuses: []devicegateway.StatusResult{online()}})

		_, err := o.Capture(context.Background(), Request{Provider: "nope", ProviderDeviceID: "d1"})
		assert.ErrorIs(t, err, devicegateway.ErrProviderNotFound)
	})
}

func TestOrchestratorNavigationScript(t *testing.T) {
	adapter := &fakeAdapter{
		statuses:   []devicegateway.StatusResult{online()},
		launchOK:   true,
		screenshot: &devicegateway.Screenshot{Data: []byte("png")},
	}
	o := newTestOrchestrator(t, adapter)

	_, err := o.Capture(context.Background(), Request{
		Provider:         "fake",
		ProviderDeviceID: "d1",
		TrackingID:       "JJD 0003 9000 788",
	})
	require.NoError(t, err)
	require.NotEmpty(t, adapter.commands)

	var sawTracking, sawKeyEvent bool
	for _, cmd := range adapter.commands {
		if cmd == "input text 'JJD%s0003%s9000%s788'" {
			sawTracking = true
		}
		if cmd == "input keyevent 66" {
			sawKeyEvent = true
		}
	}
	assert.True(t, sawTracking, "tracking id should be typed with %%s space escapes")
	assert.True(t, sawKeyEvent, "script should submit with the enter keycode")
}

func TestOrchestratorScriptFailure(t *testing.T) {
	adapter := &fakeAdapter{
		statuses:   []devicegateway.StatusResult{online()},
		launchOK:   true,
		commandErr: errors.New("adb bridge closed"),
		screenshot: &devicegateway.Screenshot{Data: []byte("png")},
	}
	o := newTestOrchestrator(t, adapter)

	_, err := o.Capture(context.Background(), Request{
		Provider:         "fake",
		ProviderDeviceID: "d1",
		TrackingID:       "JJD0003",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigation step")
}

func TestEscapeInputText(t *testing.T) {
	assert.Equal(t, "'abc'", escapeInputText("abc"))
	assert.Equal(t, "'a%sb'", escapeInputText("a b"))
	assert.Equal(t, "'ab'", escapeInputText("a'b"))
}

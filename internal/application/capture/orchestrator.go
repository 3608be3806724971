// Package capture drives the multi-step automation sequence that
// produces a pickup-code screenshot from a remote device.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/shared/logger"
)

// Step-level sentinel failures. Each names the furthest step reached so
// callers can report where the sequence died.
var (
	ErrDeviceUnavailable = errors.New("device unavailable: power-on request failed")
	ErrDeviceNotReady    = errors.New("device not ready: still offline after boot settle")
	ErrLaunchFailed      = errors.New("app launch failed")
	ErrScreenshotFailed  = errors.New("screenshot failed")
)

// Request is one capture to perform against an assigned device.
type Request struct {
	Provider         string
	ProviderDeviceID string
	// TrackingID, when set, is injected through the navigation script.
	// Empty means capture the app's landing screen as-is.
	TrackingID string
}

// Orchestrator executes the capture sequence: ensure powered on, launch
// the target app, blind-navigate, screenshot. Every step is remote and
// unreliable; the sequence recovers from a powered-off device once and
// treats all later failures as terminal for the attempt.
type Orchestrator struct {
	registry     *devicegateway.Registry
	appPackage   string
	bootSettle   time.Duration
	launchSettle time.Duration
	script       devicegateway.NavigationScript
	logger       logger.Interface
}

func NewOrchestrator(
	registry *devicegateway.Registry,
	appPackage string,
	bootSettle, launchSettle time.Duration,
	log logger.Interface,
) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		appPackage:   appPackage,
		bootSettle:   bootSettle,
		launchSettle: launchSettle,
		script:       devicegateway.DefaultTrackingScript(),
		logger:       log.Named("orchestrator"),
	}
}

// Capture runs the full sequence and returns the screenshot. The
// returned error wraps one of the step sentinels (or the registry's
// not-found) so callers can classify the failure.
func (o *Orchestrator) Capture(ctx context.Context, req Request) (*devicegateway.Screenshot, error) {
	adapter, err := o.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	if err := o.ensureOnline(ctx, adapter, req.ProviderDeviceID); err != nil {
		return nil, err
	}

	if !adapter.LaunchApp(ctx, req.ProviderDeviceID, o.appPackage) {
		return nil, fmt.Errorf("%w: package %s", ErrLaunchFailed, o.appPackage)
	}
	if err := sleepCtx(ctx, o.launchSettle); err != nil {
		return nil, err
	}

	if req.TrackingID != "" {
		if err := o.runScript(ctx, adapter, req.ProviderDeviceID, req.TrackingID); err != nil {
			return nil, err
		}
	}

	shot, err := adapter.TakeScreenshot(ctx, req.ProviderDeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreenshotFailed, err)
	}

	o.logger.Infow("capture sequence completed",
		"provider", req.Provider,
		"device_id", req.ProviderDeviceID,
		"has_tracking", req.TrackingID != "",
	)
	return shot, nil
}

// ensureOnline powers the device on if needed and waits out the boot.
// The recheck happens exactly once: a device that cannot come up within
// one settle window is not worth burning the attempt deadline on.
func (o *Orchestrator) ensureOnline(ctx context.Context, adapter devicegateway.Adapter, deviceID string) error {
	status := adapter.GetDeviceStatus(ctx, deviceID)
	if status.Online {
		return nil
	}

	o.logger.Infow("device offline, requesting power-on", "device_id", deviceID, "native_status", status.Native)
	if !adapter.StartDevice(ctx, deviceID) {
		return ErrDeviceUnavailable
	}
	if err := sleepCtx(ctx, o.bootSettle); err != nil {
		return err
	}

	status = adapter.GetDeviceStatus(ctx, deviceID)
	if !status.Online {
		return fmt.Errorf("%w: native status %s", ErrDeviceNotReady, status.Native)
	}
	return nil
}

// runScript executes the blind navigation sequence. The script has no
// visual feedback loop; a failed input command is the only observable
// failure mode.
func (o *Orchestrator) runScript(ctx context.Context, adapter devicegateway.Adapter, deviceID, trackingID string) error {
	for i, step := range o.script.Steps {
		var cmd string
		switch step.Kind {
		case devicegateway.NavTap:
			cmd = fmt.Sprintf("input tap %d %d", step.X, step.Y)
		case devicegateway.NavText:
			text := step.Text
			if step.UseTracking {
				text = trackingID
			}
			cmd = "input text " + escapeInputText(text)
		case devicegateway.NavKeyEvent:
			cmd = "input keyevent " + strconv.Itoa(step.KeyCode)
		default:
			return fmt.Errorf("unknown navigation step kind: %s", step.Kind)
		}

		if _, err := adapter.ExecuteCommand(ctx, deviceID, cmd); err != nil {
			return fmt.Errorf("navigation step %d (%s) failed: %w", i, step.Kind, err)
		}
		if step.Delay > 0 {
			if err := sleepCtx(ctx, step.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// escapeInputText quotes text for the input shell command. input text
// treats spaces as argument separators; %s is its own space escape.
func escapeInputText(text string) string {
	escaped := strings.ReplaceAll(text, " ", "%s")
	return "'" + strings.ReplaceAll(escaped, "'", "") + "'"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package devicegateway

import "time"

// NavStepKind identifies one action in a navigation script.
type NavStepKind string

const (
	NavTap      NavStepKind = "tap"
	NavText     NavStepKind = "text"
	NavKeyEvent NavStepKind = "keyevent"
)

// NavStep is one blind UI action. Text steps with UseTracking set
// inject the customer-supplied tracking identifier instead of a fixed
// literal.
type NavStep struct {
	Kind        NavStepKind
	X, Y        int
	Text        string
	UseTracking bool
	KeyCode     int
	Delay       time.Duration
}

// NavigationScript is a fixed sequence of coordinate taps, text
// injection, and key events executed against the target app. It has no
// visual feedback loop and cannot detect whether the expected screen
// appeared; it exists as a value object per provider/app combination so
// it can be swapped without touching the orchestrator.
type NavigationScript struct {
	Steps []NavStep
}

// IsEmpty reports whether the script has no steps.
func (s NavigationScript) IsEmpty() bool {
	return len(s.Steps) == 0
}

// DefaultTrackingScript is the stock script for the shipping app's
// tracking-number entry flow: open search, type the tracking id,
// confirm with ENTER (keycode 66).
func DefaultTrackingScript() NavigationScript {
	return NavigationScript{
		Steps: []NavStep{
			{Kind: NavTap, X: 540, Y: 1650, Delay: 2 * time.Second},
			{Kind: NavTap, X: 540, Y: 350, Delay: 1500 * time.Millisecond},
			{Kind: NavText, UseTracking: true, Delay: 1500 * time.Millisecond},
			{Kind: NavKeyEvent, KeyCode: 66, Delay: 3 * time.Second},
		},
	}
}

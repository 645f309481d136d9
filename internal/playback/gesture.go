package playback

import "time"

const (
	DefaultDoubleTapWindow   = 300 * time.Millisecond
	DefaultLongPressDuration = 600 * time.Millisecond
)

// HapticMilestones are the fractions of a long press at which a haptic pulse
// fires.
var HapticMilestones = []float64{0, 0.2, 0.4, 0.6, 0.8}

// TapResult is what a tap resolved to.
type TapResult int

const (
	TapNone TapResult = iota
	TapSingle
	TapDouble
)

// TapRecognizer tells single taps from double taps. A single tap is only
// reported once the double-tap window has passed without a second tap.
type TapRecognizer struct {
	window  time.Duration
	pending bool
	videoID string
	at      time.Time

	// Last completed double tap; taps chained onto it are absorbed
	doubleVideoID string
	doubleAt      time.Time
}

func NewTapRecognizer(window time.Duration) *TapRecognizer {
	if window <= 0 {
		window = DefaultDoubleTapWindow
	}
	return &TapRecognizer{window: window}
}

// Tap registers a tap. It returns TapDouble for videoID when it completes a
// double tap. Further taps on the same video within the window of the last
// tap of a double tap are absorbed. When the tap supersedes a pending tap on
// another video, the pending one resolves as a single tap and its video id is
// returned.
func (r *TapRecognizer) Tap(videoID string, now time.Time) (TapResult, string) {
	if r.pending && r.videoID == videoID && now.Sub(r.at) <= r.window {
		r.pending = false
		r.doubleVideoID, r.doubleAt = videoID, now
		return TapDouble, videoID
	}
	if !r.pending && r.doubleVideoID == videoID && now.Sub(r.doubleAt) <= r.window {
		r.doubleAt = now
		return TapNone, ""
	}
	r.doubleVideoID = ""

	var result TapResult
	var resolved string
	if r.pending {
		result, resolved = TapSingle, r.videoID
	}
	r.pending = true
	r.videoID = videoID
	r.at = now
	return result, resolved
}

// Advance resolves a pending tap as a single tap once the window has passed.
func (r *TapRecognizer) Advance(now time.Time) (TapResult, string) {
	if r.pending && now.Sub(r.at) > r.window {
		r.pending = false
		return TapSingle, r.videoID
	}
	return TapNone, ""
}

// Pending reports whether a tap is waiting for a possible second tap.
func (r *TapRecognizer) Pending() bool {
	return r.pending
}

// Action is the terminal action of a completed long press.
type Action string

const (
	ActionBookmark    Action = "bookmark"
	ActionContextMenu Action = "context_menu"
)

// PressPhase is the lifecycle of a long press.
type PressPhase int

const (
	PressIdle PressPhase = iota
	PressHolding
	PressCompleted
	PressCancelled
)

// LongPress tracks one press gesture. Pulses fire as milestones are crossed
// and the terminal action fires at most once.
type LongPress struct {
	VideoID  string
	X, Y     float64
	Action   Action
	duration time.Duration
	start    time.Time
	pulses   int
	phase    PressPhase
}

// PressStep is what a long press produced on one update.
type PressStep struct {
	// Pulses holds the progress fraction of each haptic pulse fired.
	Pulses   []float64
	Complete bool
}

func newLongPress(videoID string, x, y float64, action Action, duration time.Duration, now time.Time) *LongPress {
	if duration <= 0 {
		duration = DefaultLongPressDuration
	}
	return &LongPress{
		VideoID:  videoID,
		X:        x,
		Y:        y,
		Action:   action,
		duration: duration,
		start:    now,
		phase:    PressHolding,
	}
}

// Phase returns the current press phase.
func (p *LongPress) Phase() PressPhase {
	return p.phase
}

// Advance fires every pulse whose milestone has been reached and completes
// the press once the full duration has elapsed.
func (p *LongPress) Advance(now time.Time) PressStep {
	var step PressStep
	if p.phase != PressHolding {
		return step
	}

	progress := float64(now.Sub(p.start)) / float64(p.duration)
	for p.pulses < len(HapticMilestones) && progress >= HapticMilestones[p.pulses] {
		step.Pulses = append(step.Pulses, HapticMilestones[p.pulses])
		p.pulses++
	}
	if progress >= 1 {
		p.phase = PressCompleted
		step.Complete = true
	}
	return step
}

// Release ends the press. A press released before completion is cancelled.
func (p *LongPress) Release(now time.Time) PressStep {
	step := p.Advance(now)
	if p.phase == PressHolding {
		p.phase = PressCancelled
	}
	return step
}

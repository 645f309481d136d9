// Package playback implements the feed playback controller: per-video
// playback state, visibility driven autoplay, preloading, adaptive quality
// selection, gestures, keyboard shortcuts and the mini-player.
package playback

// State is the playback state of a single feed video.
type State string

const (
	StateIdle      State = "idle"
	StateBuffering State = "buffering"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateError     State = "error"
)

// ReadyState mirrors the media element readyState ladder.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// CanPlay reports whether enough data is buffered to start playback.
func (r ReadyState) CanPlay() bool {
	return r >= HaveFutureData
}

// Preload is the media element preload hint.
type Preload string

const (
	PreloadNone     Preload = "none"
	PreloadMetadata Preload = "metadata"
	PreloadAuto     Preload = "auto"
)

// validTransitions defines the allowed state changes for a player
var validTransitions = map[State][]State{
	StateIdle:      {StateBuffering, StatePlaying, StateError},
	StateBuffering: {StatePlaying, StatePaused, StateIdle, StateError},
	StatePlaying:   {StatePaused, StateBuffering, StateIdle, StateError},
	StatePaused:    {StatePlaying, StateBuffering, StateIdle, StateError},
	StateError:     {StateIdle},
}

// CanTransition reports whether a player may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Video is a feed entry as the controller sees it.
type Video struct {
	ID              string      `json:"id"`
	URL             string      `json:"url"`
	DurationSeconds float64     `json:"duration_seconds"`
	Renditions      []Rendition `json:"renditions,omitempty"`
	Liked           bool        `json:"liked"`
	LikeCount       int64       `json:"like_count"`
}

// Player holds the per-video playback state.
type Player struct {
	Video     Video      `json:"video"`
	State     State      `json:"state"`
	Ready     ReadyState `json:"ready"`
	Preload   Preload    `json:"preload"`
	Source    string     `json:"source"`
	Rendition *Rendition `json:"rendition,omitempty"`
	Position  float64    `json:"position"`
	Muted     bool       `json:"muted"`
	Buffering bool       `json:"buffering"`
	Visible   bool       `json:"visible"`
}

func newPlayer(v Video, muted bool) *Player {
	return &Player{
		Video:   v,
		State:   StateIdle,
		Ready:   HaveNothing,
		Preload: PreloadNone,
		Muted:   muted,
	}
}

// transition moves the player to the target state when the move is legal.
func (p *Player) transition(to State) bool {
	if p.State == to {
		return false
	}
	if !CanTransition(p.State, to) {
		return false
	}
	p.State = to
	p.Buffering = to == StateBuffering
	return true
}

// Loaded reports whether the player has a source attached.
func (p *Player) Loaded() bool {
	return p.Source != ""
}

func (p *Player) clampPosition(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if p.Video.DurationSeconds > 0 && pos > p.Video.DurationSeconds {
		return p.Video.DurationSeconds
	}
	return pos
}

// MiniPlayer is the floating player that keeps a video going after it has
// scrolled out of view.
type MiniPlayer struct {
	VideoID  string  `json:"video_id"`
	Source   string  `json:"source"`
	Position float64 `json:"position"`
	Muted    bool    `json:"muted"`
	Paused   bool    `json:"paused"`
}

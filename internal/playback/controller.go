package playback

import (
	"time"
)

// Config tunes a Controller. The zero value of a duration or threshold
// selects its default.
type Config struct {
	Autoplay   bool
	Muted      bool
	ABREnabled bool
	MiniPlayer bool

	VisibilityThreshold float64
	DoubleTapWindow     time.Duration
	LongPressDuration   time.Duration
	LongPressAction     Action
	ErrorTTL            time.Duration
	SeekStep            float64
	UnloadDistance      int
}

// DefaultConfig returns the feed defaults. Adaptive bitrate is off until the
// policy has been validated against real sessions.
func DefaultConfig() Config {
	return Config{
		Autoplay:            true,
		Muted:               true,
		ABREnabled:          false,
		MiniPlayer:          true,
		VisibilityThreshold: 0.5,
		DoubleTapWindow:     DefaultDoubleTapWindow,
		LongPressDuration:   DefaultLongPressDuration,
		LongPressAction:     ActionBookmark,
		ErrorTTL:            DefaultErrorTTL,
		SeekStep:            5,
		UnloadDistance:      DefaultUnloadDistance,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VisibilityThreshold <= 0 {
		c.VisibilityThreshold = d.VisibilityThreshold
	}
	if c.DoubleTapWindow <= 0 {
		c.DoubleTapWindow = d.DoubleTapWindow
	}
	if c.LongPressDuration <= 0 {
		c.LongPressDuration = d.LongPressDuration
	}
	if c.LongPressAction == "" {
		c.LongPressAction = d.LongPressAction
	}
	if c.ErrorTTL <= 0 {
		c.ErrorTTL = d.ErrorTTL
	}
	if c.SeekStep <= 0 {
		c.SeekStep = d.SeekStep
	}
	if c.UnloadDistance <= 0 {
		c.UnloadDistance = d.UnloadDistance
	}
	return c
}

// Overlay is the UI layer shown above the feed.
type Overlay string

const (
	OverlayNone        Overlay = ""
	OverlayHelp        Overlay = "help"
	OverlayContextMenu Overlay = "context_menu"
)

// MediaEvent is a media element event reported by the host.
type MediaEvent string

const (
	MediaLoadedMetadata MediaEvent = "loadedmetadata"
	MediaCanPlay        MediaEvent = "canplay"
	MediaPlaying        MediaEvent = "playing"
	MediaWaiting        MediaEvent = "waiting"
	MediaError          MediaEvent = "error"
)

// Controller drives playback for a scrollable feed of videos. It never touches
// media elements itself: every method returns the commands the host must
// apply. Time is passed in by the caller and timers advance through Advance.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	cfg     Config
	players []*Player
	byID    map[string]int
	visible int
	mini    *MiniPlayer
	errors  *ErrorTracker
	taps    *TapRecognizer
	press   *LongPress
	network NetworkClass
	overlay Overlay
}

func NewController(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		byID:    make(map[string]int),
		visible: -1,
		errors:  NewErrorTracker(cfg.ErrorTTL),
		taps:    NewTapRecognizer(cfg.DoubleTapWindow),
		network: NetworkMedium,
	}
}

// Load replaces the feed with videos.
func (c *Controller) Load(videos []Video) []Command {
	cmds := c.closeMini()
	c.players = c.players[:0]
	c.byID = make(map[string]int, len(videos))
	c.visible = -1
	c.press = nil
	return append(cmds, c.Append(videos)...)
}

// Append adds videos to the end of the feed, skipping ids already present.
func (c *Controller) Append(videos []Video) []Command {
	for _, v := range videos {
		if _, exists := c.byID[v.ID]; exists {
			continue
		}
		c.byID[v.ID] = len(c.players)
		c.players = append(c.players, newPlayer(v, c.cfg.Muted))
	}
	return c.applyPreload()
}

// Player returns the player for videoID.
func (c *Controller) Player(videoID string) (*Player, bool) {
	idx, ok := c.byID[videoID]
	if !ok {
		return nil, false
	}
	return c.players[idx], true
}

// PlayerAt returns the player at a feed index.
func (c *Controller) PlayerAt(index int) *Player {
	if index < 0 || index >= len(c.players) {
		return nil
	}
	return c.players[index]
}

func (c *Controller) Len() int { return len(c.players) }
func (c *Controller) VisibleIndex() int { return c.visible }
func (c *Controller) MiniPlayer() *MiniPlayer { return c.mini }
func (c *Controller) Network() NetworkClass { return c.network }
func (c *Controller) Overlay() Overlay { return c.overlay }
func (c *Controller) Config() Config { return c.cfg }
func (c *Controller) Errors() *ErrorTracker { return c.errors }
func (c *Controller) ActivePress() *LongPress { return c.press }
func (c *Controller) SetAutoplay(enabled bool) { c.cfg.Autoplay = enabled }

// SetABREnabled toggles adaptive bitrate switching.
func (c *Controller) SetABREnabled(enabled bool) {
	c.cfg.ABREnabled = enabled
}

// SetLongPressAction selects the terminal action of future long presses.
func (c *Controller) SetLongPressAction(a Action) {
	c.cfg.LongPressAction = a
}

// SetNetwork classifies the connection from the host readings.
func (c *Controller) SetNetwork(info *NetworkInfo, device DeviceInfo) NetworkClass {
	c.network = ClassifyNetwork(info, device)
	return c.network
}

// SetLiked reconciles the like state with the server.
func (c *Controller) SetLiked(videoID string, liked bool, count int64) {
	if p, ok := c.Player(videoID); ok {
		p.Video.Liked = liked
		p.Video.LikeCount = count
	}
}

// SetVisibility reports the intersection ratio of a video with the viewport.
func (c *Controller) SetVisibility(videoID string, ratio float64, now time.Time) []Command {
	idx, ok := c.byID[videoID]
	if !ok {
		return nil
	}
	p := c.players[idx]
	visible := ratio >= c.cfg.VisibilityThreshold
	if visible == p.Visible {
		return nil
	}
	p.Visible = visible
	if visible {
		return c.enter(idx, now)
	}
	return c.leave(p)
}

func (c *Controller) enter(idx int, now time.Time) []Command {
	p := c.players[idx]
	c.visible = idx

	var cmds []Command
	if c.mini != nil && c.mini.VideoID == p.Video.ID {
		p.Position = c.mini.Position
		cmds = append(cmds, c.closeMini()...)
	}
	cmds = append(cmds, c.applyPreload()...)
	if c.cfg.Autoplay && !c.errors.Active(p.Video.ID, now) {
		cmds = append(cmds, c.start(p)...)
	}
	return cmds
}

func (c *Controller) leave(p *Player) []Command {
	switch p.State {
	case StatePlaying:
		p.transition(StatePaused)
		cmds := []Command{{Kind: CmdPause, VideoID: p.Video.ID, Position: p.Position}}
		if c.cfg.MiniPlayer {
			cmds = append(cmds, c.openMini(p, false)...)
		}
		return cmds
	case StateBuffering:
		p.transition(StatePaused)
		return []Command{{Kind: CmdPause, VideoID: p.Video.ID, Position: p.Position}}
	}
	return nil
}

// start begins playback, going through buffering when the element cannot
// play yet.
func (c *Controller) start(p *Player) []Command {
	if p.State == StatePlaying || p.State == StateError {
		return nil
	}
	var cmds []Command
	if !p.Loaded() {
		c.attachSource(p)
		cmds = append(cmds, Command{Kind: CmdLoad, VideoID: p.Video.ID, Source: p.Source, Preload: p.Preload, Rendition: p.Rendition})
	}
	target := StateBuffering
	if p.Ready.CanPlay() {
		target = StatePlaying
	}
	if !p.transition(target) {
		return cmds
	}
	return append(cmds, Command{Kind: CmdPlay, VideoID: p.Video.ID, Position: p.Position, Muted: p.Muted})
}

func (c *Controller) pause(p *Player) []Command {
	if !p.transition(StatePaused) {
		return nil
	}
	return []Command{{Kind: CmdPause, VideoID: p.Video.ID, Position: p.Position}}
}

func (c *Controller) togglePlay(videoID string) []Command {
	p, ok := c.Player(videoID)
	if !ok {
		return nil
	}
	switch p.State {
	case StatePlaying, StateBuffering:
		return c.pause(p)
	case StatePaused, StateIdle:
		return c.start(p)
	}
	return nil
}

func (c *Controller) openMini(p *Player, paused bool) []Command {
	cmds := c.closeMini()
	c.mini = &MiniPlayer{
		VideoID:  p.Video.ID,
		Source:   p.Source,
		Position: p.Position,
		Muted:    p.Muted,
		Paused:   paused,
	}
	return append(cmds, Command{
		Kind:     CmdMiniPlayerOpen,
		VideoID:  p.Video.ID,
		Source:   p.Source,
		Position: p.Position,
		Muted:    p.Muted,
		Paused:   paused,
	})
}

func (c *Controller) closeMini() []Command {
	if c.mini == nil {
		return nil
	}
	cmd := Command{Kind: CmdMiniPlayerClose, VideoID: c.mini.VideoID, Position: c.mini.Position}
	c.mini = nil
	return []Command{cmd}
}

// DismissMiniPlayer closes the floating player.
func (c *Controller) DismissMiniPlayer() []Command {
	return c.closeMini()
}

// attachSource picks the initial source for a player.
func (c *Controller) attachSource(p *Player) {
	p.Rendition = nil
	if c.cfg.ABREnabled && len(p.Video.Renditions) > 0 {
		r, _ := BestForNetwork(p.Video.Renditions, c.network)
		p.Rendition = &r
		p.Source = r.URL
		return
	}
	p.Source = p.Video.URL
	if p.Source == "" && len(p.Video.Renditions) > 0 {
		ladder := SortLadder(p.Video.Renditions)
		top := ladder[len(ladder)-1]
		p.Rendition = &top
		p.Source = top.URL
	}
}

func (c *Controller) applyPreload() []Command {
	if c.visible < 0 {
		return nil
	}
	var cmds []Command
	for i, p := range c.players {
		d := PreloadPolicy(i, c.visible, c.cfg.UnloadDistance)
		if !d.Keep {
			p.Preload = PreloadNone
			if p.Loaded() {
				p.Source = ""
				p.Rendition = nil
				p.Ready = HaveNothing
				if p.State != StateError {
					p.transition(StateIdle)
				}
				cmds = append(cmds, Command{Kind: CmdUnload, VideoID: p.Video.ID})
			}
			continue
		}

		if p.Preload != d.Preload {
			p.Preload = d.Preload
			cmds = append(cmds, Command{Kind: CmdSetPreload, VideoID: p.Video.ID, Preload: d.Preload})
		}
		if d.Preload == PreloadNone {
			continue
		}
		if !p.Loaded() {
			c.attachSource(p)
			cmds = append(cmds, Command{Kind: CmdLoad, VideoID: p.Video.ID, Source: p.Source, Preload: p.Preload, Rendition: p.Rendition})
		} else if d.Load && !p.Ready.CanPlay() {
			cmds = append(cmds, Command{Kind: CmdLoad, VideoID: p.Video.ID, Source: p.Source, Preload: p.Preload, Rendition: p.Rendition})
		}
	}
	return cmds
}

// HandleMedia applies a media element event.
func (c *Controller) HandleMedia(videoID string, ev MediaEvent, message string, now time.Time) []Command {
	p, ok := c.Player(videoID)
	if !ok {
		return nil
	}

	switch ev {
	case MediaLoadedMetadata:
		if p.Ready < HaveMetadata {
			p.Ready = HaveMetadata
		}
	case MediaCanPlay, MediaPlaying:
		if p.Ready < HaveFutureData {
			p.Ready = HaveFutureData
		}
		p.Buffering = false
		if p.State == StateBuffering {
			p.transition(StatePlaying)
		}
	case MediaWaiting:
		if p.State == StatePlaying {
			p.transition(StateBuffering)
		}
	case MediaError:
		p.transition(StateError)
		p.Ready = HaveNothing
		if message == "" {
			message = "This video could not be played"
		}
		if c.errors.Record(videoID, message, now) {
			return []Command{{Kind: CmdShowToast, VideoID: videoID, Message: message}}
		}
	}
	return nil
}

// TimeUpdate records the playback position of a video.
func (c *Controller) TimeUpdate(videoID string, position float64) {
	p, ok := c.Player(videoID)
	if !ok {
		return
	}
	p.Position = p.clampPosition(position)
	if c.mini != nil && c.mini.VideoID == videoID {
		c.mini.Position = p.Position
	}
}

// Tap registers a tap on a video. Two taps inside the double-tap window like
// the video and taps chained onto them are ignored; a lone tap toggles
// playback once the window has passed.
func (c *Controller) Tap(videoID string, now time.Time) []Command {
	result, id := c.taps.Tap(videoID, now)
	switch result {
	case TapDouble:
		return c.doubleTap(id)
	case TapSingle:
		return c.togglePlay(id)
	}
	return nil
}

func (c *Controller) doubleTap(videoID string) []Command {
	p, ok := c.Player(videoID)
	if !ok {
		return nil
	}
	var cmds []Command
	if !p.Video.Liked {
		p.Video.Liked = true
		p.Video.LikeCount++
		cmds = append(cmds, Command{Kind: CmdLike, VideoID: videoID})
	}
	return append(cmds, Command{Kind: CmdShowHeart, VideoID: videoID})
}

// Press starts a long press on a video. A press already in progress is
// cancelled without its terminal action.
func (c *Controller) Press(videoID string, x, y float64, now time.Time) []Command {
	if _, ok := c.Player(videoID); !ok {
		return nil
	}
	c.press = newLongPress(videoID, x, y, c.cfg.LongPressAction, c.cfg.LongPressDuration, now)
	return c.pressCommands(c.press, c.press.Advance(now))
}

// Release ends the current long press.
func (c *Controller) Release(now time.Time) []Command {
	press := c.press
	if press == nil {
		return nil
	}
	c.press = nil
	return c.pressCommands(press, press.Release(now))
}

func (c *Controller) pressCommands(press *LongPress, step PressStep) []Command {
	var cmds []Command
	for _, progress := range step.Pulses {
		cmds = append(cmds, Command{Kind: CmdHaptic, VideoID: press.VideoID, Progress: progress})
	}
	if !step.Complete {
		return cmds
	}
	switch press.Action {
	case ActionContextMenu:
		c.overlay = OverlayContextMenu
		cmds = append(cmds, Command{Kind: CmdContextMenu, VideoID: press.VideoID, X: press.X, Y: press.Y})
	default:
		cmds = append(cmds, Command{Kind: CmdBookmark, VideoID: press.VideoID})
	}
	return cmds
}

// Advance runs the controller timers up to now: pending single taps, long
// press progress and error expiry.
func (c *Controller) Advance(now time.Time) []Command {
	var cmds []Command
	if result, id := c.taps.Advance(now); result == TapSingle {
		cmds = append(cmds, c.togglePlay(id)...)
	}
	if c.press != nil {
		press := c.press
		step := press.Advance(now)
		if press.Phase() != PressHolding {
			c.press = nil
		}
		cmds = append(cmds, c.pressCommands(press, step)...)
	}
	for _, id := range c.errors.Expire(now) {
		if p, ok := c.Player(id); ok && p.State == StateError {
			p.transition(StateIdle)
		}
		cmds = append(cmds, Command{Kind: CmdClearError, VideoID: id})
	}
	return cmds
}

// BufferSample reports the forward buffer of a video in seconds and switches
// rendition when adaptive bitrate is enabled.
func (c *Controller) BufferSample(videoID string, buffered float64) []Command {
	if !c.cfg.ABREnabled {
		return nil
	}
	p, ok := c.Player(videoID)
	if !ok || len(p.Video.Renditions) == 0 {
		return nil
	}
	if p.State != StatePlaying && p.State != StateBuffering && p.State != StatePaused {
		return nil
	}

	current := c.currentRendition(p)
	next := SelectQuality(buffered, current, c.network, p.Video.Renditions)
	if next.URL == current.URL && next.Height == current.Height {
		return nil
	}
	return c.switchSource(p, next)
}

func (c *Controller) currentRendition(p *Player) Rendition {
	if p.Rendition != nil {
		return *p.Rendition
	}
	ladder := SortLadder(p.Video.Renditions)
	for _, r := range ladder {
		if r.URL == p.Source {
			return r
		}
	}
	return ladder[len(ladder)-1]
}

// switchSource swaps the rendition while keeping position and play state.
func (c *Controller) switchSource(p *Player, r Rendition) []Command {
	p.Rendition = &r
	p.Source = r.URL
	return []Command{{
		Kind:      CmdSwitchSource,
		VideoID:   p.Video.ID,
		Source:    r.URL,
		Rendition: &r,
		Position:  p.Position,
		Paused:    p.State == StatePaused,
	}}
}

// Key handles a desktop keyboard shortcut. Keys follow KeyboardEvent.key.
func (c *Controller) Key(key string, now time.Time) []Command {
	switch key {
	case "?":
		c.overlay = OverlayHelp
		return []Command{{Kind: CmdHelpOverlay}}
	case "Escape", "Esc":
		if c.overlay == OverlayNone {
			return nil
		}
		c.overlay = OverlayNone
		return []Command{{Kind: CmdCloseOverlay}}
	}

	p := c.PlayerAt(c.visible)
	if p == nil {
		return nil
	}

	switch key {
	case " ", "Space", "Spacebar":
		return c.togglePlay(p.Video.ID)
	case "m", "M":
		return c.toggleMute(p)
	case "f", "F":
		return []Command{{Kind: CmdFullscreen, VideoID: p.Video.ID}}
	case "p", "P":
		return []Command{{Kind: CmdPictureInPic, VideoID: p.Video.ID}}
	case "ArrowLeft":
		return c.seek(p, p.Position-c.cfg.SeekStep)
	case "ArrowRight":
		return c.seek(p, p.Position+c.cfg.SeekStep)
	case "ArrowUp":
		return c.scrollTo(c.visible - 1)
	case "ArrowDown":
		return c.scrollTo(c.visible + 1)
	}

	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		decile := float64(key[0] - '0')
		return c.seek(p, p.Video.DurationSeconds*decile/10)
	}
	return nil
}

func (c *Controller) toggleMute(p *Player) []Command {
	muted := !p.Muted
	c.cfg.Muted = muted
	for _, other := range c.players {
		other.Muted = muted
	}
	if c.mini != nil {
		c.mini.Muted = muted
	}
	return []Command{{Kind: CmdSetMuted, VideoID: p.Video.ID, Muted: muted}}
}

func (c *Controller) seek(p *Player, position float64) []Command {
	p.Position = p.clampPosition(position)
	return []Command{{Kind: CmdSeek, VideoID: p.Video.ID, Position: p.Position}}
}

func (c *Controller) scrollTo(index int) []Command {
	target := c.PlayerAt(index)
	if target == nil {
		return nil
	}
	return []Command{{Kind: CmdScrollTo, VideoID: target.Video.ID, Index: index}}
}

// Snapshot is a copy of the controller state for transport to a client.
type Snapshot struct {
	Visible    int          `json:"visible"`
	Players    []Player     `json:"players"`
	MiniPlayer *MiniPlayer  `json:"mini_player,omitempty"`
	Network    NetworkClass `json:"network"`
	Overlay    Overlay      `json:"overlay,omitempty"`
	Autoplay   bool         `json:"autoplay"`
	ABREnabled bool         `json:"abr_enabled"`
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Visible:    c.visible,
		Players:    make([]Player, len(c.players)),
		Network:    c.network,
		Overlay:    c.overlay,
		Autoplay:   c.cfg.Autoplay,
		ABREnabled: c.cfg.ABREnabled,
	}
	for i, p := range c.players {
		s.Players[i] = *p
	}
	if c.mini != nil {
		mini := *c.mini
		s.MiniPlayer = &mini
	}
	return s
}

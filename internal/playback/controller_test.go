package playback

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testFeed(n int) []Video {
	videos := make([]Video, n)
	for i := range videos {
		videos[i] = Video{
			ID:              fmt.Sprintf("v%d", i),
			URL:             fmt.Sprintf("https://cdn.example.com/v%d.mp4", i),
			DurationSeconds: 30,
		}
	}
	return videos
}

func playingController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c := NewController(cfg)
	c.Load(testFeed(3))
	c.SetVisibility("v0", 1, t0)
	c.HandleMedia("v0", MediaCanPlay, "", t0)
	p, _ := c.Player("v0")
	require.Equal(t, StatePlaying, p.State)
	return c
}

func TestVisibleVideoBuffersThenPlays(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(3))

	cmds := c.SetVisibility("v0", 0.7, t0)
	p, _ := c.Player("v0")
	assert.Equal(t, StateBuffering, p.State)
	assert.True(t, p.Buffering)
	assert.Equal(t, 1, Count(cmds, CmdPlay))

	c.HandleMedia("v0", MediaCanPlay, "", t0)
	assert.Equal(t, StatePlaying, p.State)
	assert.False(t, p.Buffering)
}

func TestVisibilityBelowThresholdIgnored(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(3))

	assert.Empty(t, c.SetVisibility("v0", 0.49, t0))
	p, _ := c.Player("v0")
	assert.Equal(t, StateIdle, p.State)
}

func TestReadyVideoPlaysImmediately(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(3))
	c.HandleMedia("v1", MediaCanPlay, "", t0)

	c.SetVisibility("v1", 1, t0)
	p, _ := c.Player("v1")
	assert.Equal(t, StatePlaying, p.State)
}

func TestAutoplayDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Autoplay = false
	c := NewController(cfg)
	c.Load(testFeed(3))

	cmds := c.SetVisibility("v0", 1, t0)
	assert.Zero(t, Count(cmds, CmdPlay))
	p, _ := c.Player("v0")
	assert.Equal(t, StateIdle, p.State)
}

func TestDoubleTapLikesOnce(t *testing.T) {
	c := playingController(t, DefaultConfig())

	assert.Empty(t, c.Tap("v0", t0))
	cmds := c.Tap("v0", t0.Add(200*time.Millisecond))
	assert.Equal(t, 1, Count(cmds, CmdLike))
	assert.Equal(t, 1, Count(cmds, CmdShowHeart))

	p, _ := c.Player("v0")
	assert.True(t, p.Video.Liked)
	assert.EqualValues(t, 1, p.Video.LikeCount)
	assert.Equal(t, StatePlaying, p.State, "double tap must not toggle playback")

	// A second double tap on a liked video only shows the heart
	c.Tap("v0", t0.Add(time.Second))
	cmds = c.Tap("v0", t0.Add(time.Second+100*time.Millisecond))
	assert.Zero(t, Count(cmds, CmdLike))
	assert.Equal(t, 1, Count(cmds, CmdShowHeart))
	assert.EqualValues(t, 1, p.Video.LikeCount)
}

func TestDoubleTapWindowIsInclusive(t *testing.T) {
	c := playingController(t, DefaultConfig())

	c.Tap("v0", t0)
	cmds := c.Tap("v0", t0.Add(300*time.Millisecond))
	assert.Equal(t, 1, Count(cmds, CmdLike))
}

func TestTapsChainedOntoDoubleTapAreAbsorbed(t *testing.T) {
	c := playingController(t, DefaultConfig())

	var all []Command
	all = append(all, c.Tap("v0", t0)...)
	all = append(all, c.Tap("v0", t0.Add(100*time.Millisecond))...)
	all = append(all, c.Tap("v0", t0.Add(200*time.Millisecond))...)
	all = append(all, c.Tap("v0", t0.Add(450*time.Millisecond))...)
	all = append(all, c.Advance(t0.Add(time.Second))...)

	assert.Equal(t, 1, Count(all, CmdLike))
	assert.Zero(t, Count(all, CmdPause))
	p, _ := c.Player("v0")
	assert.Equal(t, StatePlaying, p.State)

	// Once the burst is over a lone tap pauses again
	c.Tap("v0", t0.Add(2*time.Second))
	cmds := c.Advance(t0.Add(3 * time.Second))
	assert.Equal(t, 1, Count(cmds, CmdPause))
}

func TestSpacedTapsDoNotLike(t *testing.T) {
	c := playingController(t, DefaultConfig())

	var all []Command
	all = append(all, c.Tap("v0", t0)...)
	all = append(all, c.Tap("v0", t0.Add(400*time.Millisecond))...)
	all = append(all, c.Advance(t0.Add(800*time.Millisecond))...)

	assert.Zero(t, Count(all, CmdLike))
	assert.Zero(t, Count(all, CmdShowHeart))
	p, _ := c.Player("v0")
	assert.False(t, p.Video.Liked)
	assert.EqualValues(t, 0, p.Video.LikeCount)
	// Two single taps: pause then play again
	assert.Equal(t, 1, Count(all, CmdPause))
	assert.Equal(t, 1, Count(all, CmdPlay))
}

func TestSingleTapTogglesAfterWindow(t *testing.T) {
	c := playingController(t, DefaultConfig())

	assert.Empty(t, c.Tap("v0", t0))
	assert.Empty(t, c.Advance(t0.Add(250*time.Millisecond)))

	cmds := c.Advance(t0.Add(301 * time.Millisecond))
	assert.Equal(t, 1, Count(cmds, CmdPause))
	p, _ := c.Player("v0")
	assert.Equal(t, StatePaused, p.State)
}

func TestLeavingViewportOpensMiniPlayer(t *testing.T) {
	c := playingController(t, DefaultConfig())
	c.Key("m", t0) // unmute
	c.TimeUpdate("v0", 7.5)

	p, _ := c.Player("v0")
	require.False(t, p.Muted)

	cmds := c.SetVisibility("v0", 0.1, t0)
	assert.Equal(t, 1, Count(cmds, CmdPause))
	assert.Equal(t, 1, Count(cmds, CmdMiniPlayerOpen))
	assert.Equal(t, StatePaused, p.State)

	mini := c.MiniPlayer()
	require.NotNil(t, mini)
	assert.Equal(t, "v0", mini.VideoID)
	assert.Equal(t, p.Source, mini.Source)
	assert.False(t, mini.Muted)
	assert.False(t, mini.Paused)
	assert.Equal(t, 7.5, mini.Position)

	c.TimeUpdate("v0", 9)
	cmds = c.SetVisibility("v0", 0.8, t0.Add(time.Second))
	assert.Equal(t, 1, Count(cmds, CmdMiniPlayerClose))
	assert.Nil(t, c.MiniPlayer())
	assert.Equal(t, StatePlaying, p.State)
	assert.Equal(t, 9.0, p.Position)
}

func TestMiniPlayerKeepsMutedFlag(t *testing.T) {
	c := playingController(t, DefaultConfig())

	c.SetVisibility("v0", 0, t0)
	mini := c.MiniPlayer()
	require.NotNil(t, mini)
	assert.True(t, mini.Muted)
	assert.False(t, mini.Paused)
}

func TestPausedVideoLeavingViewportHasNoMiniPlayer(t *testing.T) {
	c := playingController(t, DefaultConfig())
	c.Key(" ", t0)

	cmds := c.SetVisibility("v0", 0, t0)
	assert.Empty(t, cmds)
	assert.Nil(t, c.MiniPlayer())
}

func TestDismissMiniPlayer(t *testing.T) {
	c := playingController(t, DefaultConfig())
	c.SetVisibility("v0", 0, t0)
	require.NotNil(t, c.MiniPlayer())

	cmds := c.DismissMiniPlayer()
	assert.Equal(t, 1, Count(cmds, CmdMiniPlayerClose))
	assert.Nil(t, c.MiniPlayer())
	assert.Empty(t, c.DismissMiniPlayer())
}

func TestLongPressCompletesOnce(t *testing.T) {
	c := playingController(t, DefaultConfig())

	var all []Command
	all = append(all, c.Press("v0", 10, 20, t0)...)
	assert.Equal(t, 1, Count(all, CmdHaptic))

	all = append(all, c.Advance(t0.Add(130*time.Millisecond))...)
	assert.Equal(t, 2, Count(all, CmdHaptic))

	all = append(all, c.Advance(t0.Add(600*time.Millisecond))...)
	all = append(all, c.Release(t0.Add(700*time.Millisecond))...)
	all = append(all, c.Advance(t0.Add(time.Second))...)

	assert.Equal(t, 5, Count(all, CmdHaptic))
	assert.Equal(t, 1, Count(all, CmdBookmark))
	assert.Zero(t, Count(all, CmdContextMenu))
	assert.Nil(t, c.ActivePress())

	var progress []float64
	for _, cmd := range all {
		if cmd.Kind == CmdHaptic {
			progress = append(progress, cmd.Progress)
		}
	}
	assert.Equal(t, HapticMilestones, progress)
}

func TestLongPressReleasedEarlyCancels(t *testing.T) {
	c := playingController(t, DefaultConfig())

	var all []Command
	all = append(all, c.Press("v0", 0, 0, t0)...)
	all = append(all, c.Advance(t0.Add(300*time.Millisecond))...)
	all = append(all, c.Release(t0.Add(350*time.Millisecond))...)
	all = append(all, c.Advance(t0.Add(2*time.Second))...)

	assert.Equal(t, 3, Count(all, CmdHaptic))
	assert.Zero(t, Count(all, CmdBookmark))
	assert.Zero(t, Count(all, CmdContextMenu))
}

func TestLongPressContextMenu(t *testing.T) {
	c := playingController(t, DefaultConfig())
	c.SetLongPressAction(ActionContextMenu)

	c.Press("v0", 120, 340, t0)
	cmds := c.Release(t0.Add(DefaultLongPressDuration))

	require.Equal(t, 1, Count(cmds, CmdContextMenu))
	assert.Zero(t, Count(cmds, CmdBookmark))
	for _, cmd := range cmds {
		if cmd.Kind == CmdContextMenu {
			assert.Equal(t, 120.0, cmd.X)
			assert.Equal(t, 340.0, cmd.Y)
		}
	}
	assert.Equal(t, OverlayContextMenu, c.Overlay())

	cmds = c.Key("Escape", t0)
	assert.Equal(t, 1, Count(cmds, CmdCloseOverlay))
	assert.Equal(t, OverlayNone, c.Overlay())
}

func TestNewPressCancelsPrevious(t *testing.T) {
	c := playingController(t, DefaultConfig())

	c.Press("v0", 0, 0, t0)
	c.Press("v1", 0, 0, t0.Add(100*time.Millisecond))
	cmds := c.Advance(t0.Add(DefaultLongPressDuration + 100*time.Millisecond))

	require.Equal(t, 1, Count(cmds, CmdBookmark))
	assert.Equal(t, "v1", cmds[len(cmds)-1].VideoID)
}

func TestMediaErrorToastsOnceAndExpires(t *testing.T) {
	c := playingController(t, DefaultConfig())

	cmds := c.HandleMedia("v0", MediaError, "decode failed", t0)
	assert.Equal(t, 1, Count(cmds, CmdShowToast))
	p, _ := c.Player("v0")
	assert.Equal(t, StateError, p.State)

	assert.Empty(t, c.HandleMedia("v0", MediaError, "decode failed", t0.Add(2*time.Second)))
	assert.True(t, c.Errors().Active("v0", t0.Add(4900*time.Millisecond)))
	assert.Empty(t, c.Advance(t0.Add(4900*time.Millisecond)))

	cmds = c.Advance(t0.Add(5 * time.Second))
	assert.Equal(t, 1, Count(cmds, CmdClearError))
	assert.Equal(t, StateIdle, p.State)
	assert.False(t, c.Errors().Active("v0", t0.Add(5*time.Second)))

	cmds = c.HandleMedia("v0", MediaError, "decode failed", t0.Add(6*time.Second))
	assert.Equal(t, 1, Count(cmds, CmdShowToast))
}

func TestMediaErrorDoesNotAffectOtherVideos(t *testing.T) {
	c := playingController(t, DefaultConfig())

	c.HandleMedia("v1", MediaError, "", t0)
	p0, _ := c.Player("v0")
	p1, _ := c.Player("v1")
	assert.Equal(t, StatePlaying, p0.State)
	assert.Equal(t, StateError, p1.State)
}

func TestPreloadPolicyWhileScrolling(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(8))

	for visible := 0; visible < 8; visible++ {
		if visible > 0 {
			c.SetVisibility(fmt.Sprintf("v%d", visible-1), 0, t0)
		}
		c.SetVisibility(fmt.Sprintf("v%d", visible), 1, t0)
		require.Equal(t, visible, c.VisibleIndex())

		for i := 0; i < c.Len(); i++ {
			p := c.PlayerAt(i)
			if i == visible {
				assert.Equal(t, PreloadAuto, p.Preload, "visible index %d", i)
				assert.True(t, p.Loaded())
			} else if i == visible+1 {
				assert.Equal(t, PreloadMetadata, p.Preload, "next index %d", i)
				assert.True(t, p.Loaded())
			} else {
				assert.Equal(t, PreloadNone, p.Preload, "index %d visible %d", i, visible)
			}

			distance := i - visible
			if distance < 0 {
				distance = -distance
			}
			if distance > 2 {
				assert.Empty(t, p.Source, "index %d visible %d", i, visible)
			}
		}
	}
}

func TestPreloadLoadsVisibleVideo(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(4))

	cmds := c.SetVisibility("v2", 1, t0)
	var loaded []string
	for _, cmd := range cmds {
		if cmd.Kind == CmdLoad {
			loaded = append(loaded, cmd.VideoID)
		}
	}
	assert.Equal(t, []string{"v2", "v3"}, loaded)
}

func TestABRDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg)
	videos := testFeed(1)
	videos[0].Renditions = testLadder()
	c.Load(videos)
	c.SetVisibility("v0", 1, t0)
	c.HandleMedia("v0", MediaCanPlay, "", t0)

	assert.Nil(t, c.BufferSample("v0", 0.5))
	p, _ := c.Player("v0")
	assert.Equal(t, videos[0].URL, p.Source)
}

func TestABRSwitchPreservesPositionAndPlayState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ABREnabled = true
	c := NewController(cfg)
	c.SetNetwork(&NetworkInfo{EffectiveType: "4g"}, DeviceInfo{})
	videos := testFeed(1)
	videos[0].Renditions = testLadder()
	c.Load(videos)
	c.SetVisibility("v0", 1, t0)
	c.HandleMedia("v0", MediaCanPlay, "", t0)
	c.TimeUpdate("v0", 12.5)

	p, _ := c.Player("v0")
	require.NotNil(t, p.Rendition)
	assert.Equal(t, 1080, p.Rendition.Height)

	cmds := c.BufferSample("v0", 1.5)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdSwitchSource, cmds[0].Kind)
	assert.Equal(t, 240, cmds[0].Rendition.Height)
	assert.Equal(t, 12.5, cmds[0].Position)
	assert.False(t, cmds[0].Paused)
	assert.Equal(t, StatePlaying, p.State)

	// Healthy buffer on a fast network climbs back to the top
	cmds = c.BufferSample("v0", 12)
	require.Len(t, cmds, 1)
	assert.Equal(t, 1080, cmds[0].Rendition.Height)

	// Steady state holds
	assert.Nil(t, c.BufferSample("v0", 12))
}

func TestABRSwitchWhilePausedStaysPaused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ABREnabled = true
	c := NewController(cfg)
	c.SetNetwork(nil, DeviceInfo{MemoryGB: 16, Cores: 10})
	videos := testFeed(1)
	videos[0].Renditions = testLadder()
	c.Load(videos)
	c.SetVisibility("v0", 1, t0)
	c.HandleMedia("v0", MediaCanPlay, "", t0)
	c.Key(" ", t0)

	cmds := c.BufferSample("v0", 3)
	require.Len(t, cmds, 1)
	assert.True(t, cmds[0].Paused)
	assert.Equal(t, 720, cmds[0].Rendition.Height)
}

func TestKeyboardShortcuts(t *testing.T) {
	c := playingController(t, DefaultConfig())
	p, _ := c.Player("v0")

	cmds := c.Key("5", t0)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdSeek, cmds[0].Kind)
	assert.Equal(t, 15.0, p.Position)

	c.Key("9", t0)
	c.Key("ArrowRight", t0)
	assert.Equal(t, 30.0, p.Position, "seek clamps to duration")

	c.Key("0", t0)
	c.Key("ArrowLeft", t0)
	assert.Equal(t, 0.0, p.Position, "seek clamps to start")

	c.Key("ArrowRight", t0)
	assert.Equal(t, 5.0, p.Position)

	cmds = c.Key("ArrowDown", t0)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdScrollTo, cmds[0].Kind)
	assert.Equal(t, 1, cmds[0].Index)
	assert.Equal(t, "v1", cmds[0].VideoID)
	assert.Empty(t, c.Key("ArrowUp", t0), "no video above the first")

	assert.Equal(t, CmdFullscreen, c.Key("f", t0)[0].Kind)
	assert.Equal(t, CmdPictureInPic, c.Key("P", t0)[0].Kind)

	cmds = c.Key("M", t0)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdSetMuted, cmds[0].Kind)
	assert.False(t, p.Muted)

	cmds = c.Key(" ", t0)
	assert.Equal(t, 1, Count(cmds, CmdPause))
	assert.Equal(t, StatePaused, p.State)

	assert.Equal(t, CmdHelpOverlay, c.Key("?", t0)[0].Kind)
	assert.Equal(t, OverlayHelp, c.Overlay())
	assert.Equal(t, CmdCloseOverlay, c.Key("Escape", t0)[0].Kind)
	assert.Empty(t, c.Key("Escape", t0))

	assert.Empty(t, c.Key("x", t0))
}

func TestStallReturnsToBuffering(t *testing.T) {
	c := playingController(t, DefaultConfig())
	p, _ := c.Player("v0")

	c.HandleMedia("v0", MediaWaiting, "", t0)
	assert.Equal(t, StateBuffering, p.State)
	c.HandleMedia("v0", MediaPlaying, "", t0)
	assert.Equal(t, StatePlaying, p.State)
}

func TestAppendSkipsDuplicates(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Load(testFeed(2))
	c.Append(testFeed(4))
	assert.Equal(t, 4, c.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	c := playingController(t, DefaultConfig())
	snap := c.Snapshot()
	snap.Players[0].State = StateError

	p, _ := c.Player("v0")
	assert.Equal(t, StatePlaying, p.State)
	assert.Equal(t, 0, snap.Visible)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateBuffering))
	assert.True(t, CanTransition(StateBuffering, StatePlaying))
	assert.True(t, CanTransition(StatePlaying, StatePaused))
	assert.True(t, CanTransition(StatePaused, StateError))
	assert.True(t, CanTransition(StateError, StateIdle))
	assert.False(t, CanTransition(StateError, StatePlaying))
	assert.False(t, CanTransition(StateIdle, StatePaused))
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/playback"
	"go.uber.org/zap"
)

// FeedSource resolves the videos a playback session loads.
type FeedSource interface {
	PlaybackVideos(ctx context.Context, userID string, videoIDs []string, offset, limit int) ([]playback.Video, error)
}

// Liker records a like. It must be idempotent per user and video.
type Liker interface {
	LikeVideo(ctx context.Context, userID, videoID string) (likeCount int64, err error)
}

// Bookmarker saves a video to the user's default collection.
type Bookmarker interface {
	SaveToDefault(ctx context.Context, userID, videoID string) error
}

// SettingsLoader returns the stored UI settings for a user.
type SettingsLoader interface {
	Get(ctx context.Context, userID string) (models.SettingsValues, error)
}

const defaultSessionPageSize = 10

// PlaybackLoadPayload loads explicit videos, or a page of the feed when
// VideoIDs is empty.
type PlaybackLoadPayload struct {
	VideoIDs []string `json:"video_ids,omitempty"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	Append   bool     `json:"append"`
}

type PlaybackVisibilityPayload struct {
	VideoID string  `json:"video_id"`
	Ratio   float64 `json:"ratio"`
}

type PlaybackTapPayload struct {
	VideoID string `json:"video_id"`
}

type PlaybackPressPayload struct {
	VideoID string  `json:"video_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type PlaybackKeyPayload struct {
	Key string `json:"key"`
}

type PlaybackMediaPayload struct {
	VideoID string              `json:"video_id"`
	Event   playback.MediaEvent `json:"event"`
	Message string              `json:"message,omitempty"`
}

type PlaybackTimePayload struct {
	VideoID  string  `json:"video_id"`
	Position float64 `json:"position"`
}

type PlaybackBufferPayload struct {
	VideoID  string  `json:"video_id"`
	Buffered float64 `json:"buffered"`
}

// PlaybackNetworkPayload carries a Network Information reading. Unavailable
// means the browser exposes no reading and only the device hints apply.
type PlaybackNetworkPayload struct {
	EffectiveType string  `json:"effective_type,omitempty"`
	DownlinkMbps  float64 `json:"downlink_mbps,omitempty"`
	Unavailable   bool    `json:"unavailable,omitempty"`
	MemoryGB      float64 `json:"memory_gb,omitempty"`
	Cores         int     `json:"cores,omitempty"`
}

// PlaybackSettingsPayload changes session switches. Nil fields are left alone.
type PlaybackSettingsPayload struct {
	Autoplay        *bool           `json:"autoplay,omitempty"`
	ABREnabled      *bool           `json:"abr_enabled,omitempty"`
	LongPressAction playback.Action `json:"long_press_action,omitempty"`
}

// PlaybackCommandsPayload is the server reply to every playback message
type PlaybackCommandsPayload struct {
	Commands []playback.Command `json:"commands"`
}

// PlaybackSession is the playback controller of one connection
type PlaybackSession struct {
	mu     sync.Mutex
	userID string
	ctrl   *playback.Controller
}

// PlaybackSessions wires playback.* messages to per-connection controllers.
type PlaybackSessions struct {
	feed      FeedSource
	likes     Liker
	bookmarks Bookmarker
	settings  SettingsLoader
}

// NewPlaybackSessions creates the session handler set. bookmarks and settings
// may be nil.
func NewPlaybackSessions(feed FeedSource, likes Liker, bookmarks Bookmarker, settings SettingsLoader) *PlaybackSessions {
	return &PlaybackSessions{
		feed:      feed,
		likes:     likes,
		bookmarks: bookmarks,
		settings:  settings,
	}
}

type playbackOp func(ctx context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error)

// Register installs the playback handlers on the hub
func (s *PlaybackSessions) Register(hub *Hub) {
	hub.RegisterHandler(MessageTypePlaybackLoad, s.handle(s.load))
	hub.RegisterHandler(MessageTypePlaybackVisibility, s.handle(s.visibility))
	hub.RegisterHandler(MessageTypePlaybackTap, s.handle(s.tap))
	hub.RegisterHandler(MessageTypePlaybackPress, s.handle(s.press))
	hub.RegisterHandler(MessageTypePlaybackRelease, s.handle(s.release))
	hub.RegisterHandler(MessageTypePlaybackKey, s.handle(s.key))
	hub.RegisterHandler(MessageTypePlaybackMedia, s.handle(s.media))
	hub.RegisterHandler(MessageTypePlaybackTime, s.handle(s.timeUpdate))
	hub.RegisterHandler(MessageTypePlaybackBuffer, s.handle(s.buffer))
	hub.RegisterHandler(MessageTypePlaybackNetwork, s.handle(s.network))
	hub.RegisterHandler(MessageTypePlaybackSettings, s.handle(s.updateSettings))
	hub.RegisterHandler(MessageTypePlaybackTick, s.handle(tick))
	hub.RegisterHandler(MessageTypePlaybackDismiss, s.handle(dismiss))
	hub.RegisterHandler(MessageTypePlaybackState, s.state)
}

// Session returns the playback session of a client, creating it with the
// user's stored settings on first use.
func (s *PlaybackSessions) Session(ctx context.Context, client *Client) *PlaybackSession {
	client.mu.RLock()
	sess := client.session
	client.mu.RUnlock()
	if sess != nil {
		return sess
	}

	cfg := playback.DefaultConfig()
	if s.settings != nil {
		values, err := s.settings.Get(ctx, client.UserID)
		if err != nil {
			logger.Log.Warn("Failed to load playback settings, using defaults",
				logger.WithUserID(client.UserID),
				zap.Error(err))
		} else {
			cfg.Autoplay = values.Autoplay
			cfg.Muted = values.Muted
			cfg.ABREnabled = values.ABREnabled
		}
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.session == nil {
		client.session = &PlaybackSession{
			userID: client.UserID,
			ctrl:   playback.NewController(cfg),
		}
	}
	return client.session
}

// handle runs the controller timers up to the message time before the
// operation itself, then applies server-side effects and replies with the
// resulting commands.
func (s *PlaybackSessions) handle(op playbackOp) MessageHandler {
	return func(client *Client, msg *Message) error {
		ctx := client.ctx
		sess := s.Session(ctx, client)
		now := msg.Timestamp.Time

		sess.mu.Lock()
		cmds := sess.ctrl.Advance(now)
		more, err := op(ctx, sess, msg, now)
		cmds = append(cmds, more...)
		cmds = s.applyEffects(ctx, sess, cmds)
		sess.mu.Unlock()

		if err != nil && len(cmds) == 0 {
			return err
		}
		for _, cmd := range cmds {
			metrics.Get().PlaybackCommands.WithLabelValues(string(cmd.Kind)).Inc()
		}
		if cmds == nil {
			cmds = []playback.Command{}
		}
		if sendErr := client.Send(NewReply(msg, MessageTypePlaybackCommands, PlaybackCommandsPayload{Commands: cmds})); sendErr != nil {
			return sendErr
		}
		return err
	}
}

// applyEffects performs the commands that have a server side: likes and
// bookmarks. Failures are reported to the user as toasts and the optimistic
// like is rolled back.
func (s *PlaybackSessions) applyEffects(ctx context.Context, sess *PlaybackSession, cmds []playback.Command) []playback.Command {
	out := cmds
	for _, cmd := range cmds {
		switch cmd.Kind {
		case playback.CmdLike:
			if s.likes == nil {
				continue
			}
			count, err := s.likes.LikeVideo(ctx, sess.userID, cmd.VideoID)
			if err != nil {
				logger.Log.Warn("Playback like failed",
					logger.WithUserID(sess.userID),
					logger.WithVideoID(cmd.VideoID),
					zap.Error(err))
				if p, ok := sess.ctrl.Player(cmd.VideoID); ok {
					sess.ctrl.SetLiked(cmd.VideoID, false, p.Video.LikeCount-1)
				}
				out = append(out, playback.Command{Kind: playback.CmdShowToast, VideoID: cmd.VideoID, Message: "Could not like this video"})
				continue
			}
			sess.ctrl.SetLiked(cmd.VideoID, true, count)

		case playback.CmdBookmark:
			if s.bookmarks == nil {
				continue
			}
			if err := s.bookmarks.SaveToDefault(ctx, sess.userID, cmd.VideoID); err != nil {
				logger.Log.Warn("Playback bookmark failed",
					logger.WithUserID(sess.userID),
					logger.WithVideoID(cmd.VideoID),
					zap.Error(err))
				out = append(out, playback.Command{Kind: playback.CmdShowToast, VideoID: cmd.VideoID, Message: "Could not save this video"})
			}
		}
	}
	return out
}

func (s *PlaybackSessions) load(ctx context.Context, sess *PlaybackSession, msg *Message, _ time.Time) ([]playback.Command, error) {
	var req PlaybackLoadPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid load payload: %w", err)
	}
	if s.feed == nil {
		return nil, errors.New("feed is not available")
	}
	if req.Limit <= 0 {
		req.Limit = defaultSessionPageSize
	}

	videos, err := s.feed.PlaybackVideos(ctx, sess.userID, req.VideoIDs, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	if req.Append {
		return sess.ctrl.Append(videos), nil
	}
	return sess.ctrl.Load(videos), nil
}

func (s *PlaybackSessions) visibility(_ context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error) {
	var req PlaybackVisibilityPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid visibility payload: %w", err)
	}
	return sess.ctrl.SetVisibility(req.VideoID, req.Ratio, now), nil
}

func (s *PlaybackSessions) tap(_ context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error) {
	var req PlaybackTapPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid tap payload: %w", err)
	}
	return sess.ctrl.Tap(req.VideoID, now), nil
}

func (s *PlaybackSessions) press(_ context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error) {
	var req PlaybackPressPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid press payload: %w", err)
	}
	return sess.ctrl.Press(req.VideoID, req.X, req.Y, now), nil
}

func (s *PlaybackSessions) release(_ context.Context, sess *PlaybackSession, _ *Message, now time.Time) ([]playback.Command, error) {
	return sess.ctrl.Release(now), nil
}

func (s *PlaybackSessions) key(_ context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error) {
	var req PlaybackKeyPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid key payload: %w", err)
	}
	return sess.ctrl.Key(req.Key, now), nil
}

func (s *PlaybackSessions) media(_ context.Context, sess *PlaybackSession, msg *Message, now time.Time) ([]playback.Command, error) {
	var req PlaybackMediaPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid media payload: %w", err)
	}
	return sess.ctrl.HandleMedia(req.VideoID, req.Event, req.Message, now), nil
}

func (s *PlaybackSessions) timeUpdate(_ context.Context, sess *PlaybackSession, msg *Message, _ time.Time) ([]playback.Command, error) {
	var req PlaybackTimePayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid time payload: %w", err)
	}
	sess.ctrl.TimeUpdate(req.VideoID, req.Position)
	return nil, nil
}

func (s *PlaybackSessions) buffer(_ context.Context, sess *PlaybackSession, msg *Message, _ time.Time) ([]playback.Command, error) {
	var req PlaybackBufferPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid buffer payload: %w", err)
	}
	return sess.ctrl.BufferSample(req.VideoID, req.Buffered), nil
}

func (s *PlaybackSessions) network(_ context.Context, sess *PlaybackSession, msg *Message, _ time.Time) ([]playback.Command, error) {
	var req PlaybackNetworkPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid network payload: %w", err)
	}
	var info *playback.NetworkInfo
	if !req.Unavailable {
		info = &playback.NetworkInfo{EffectiveType: req.EffectiveType, DownlinkMbps: req.DownlinkMbps}
	}
	sess.ctrl.SetNetwork(info, playback.DeviceInfo{MemoryGB: req.MemoryGB, Cores: req.Cores})
	return nil, nil
}

func (s *PlaybackSessions) updateSettings(_ context.Context, sess *PlaybackSession, msg *Message, _ time.Time) ([]playback.Command, error) {
	var req PlaybackSettingsPayload
	if err := msg.ParsePayload(&req); err != nil {
		return nil, fmt.Errorf("invalid settings payload: %w", err)
	}
	if req.Autoplay != nil {
		sess.ctrl.SetAutoplay(*req.Autoplay)
	}
	if req.ABREnabled != nil {
		sess.ctrl.SetABREnabled(*req.ABREnabled)
	}
	switch req.LongPressAction {
	case "":
	case playback.ActionBookmark, playback.ActionContextMenu:
		sess.ctrl.SetLongPressAction(req.LongPressAction)
	default:
		return nil, fmt.Errorf("unknown long press action %q", req.LongPressAction)
	}
	return nil, nil
}

func tick(_ context.Context, _ *PlaybackSession, _ *Message, _ time.Time) ([]playback.Command, error) {
	return nil, nil
}

func dismiss(_ context.Context, sess *PlaybackSession, _ *Message, _ time.Time) ([]playback.Command, error) {
	return sess.ctrl.DismissMiniPlayer(), nil
}

// state replies with a full controller snapshot instead of commands
func (s *PlaybackSessions) state(client *Client, msg *Message) error {
	sess := s.Session(client.ctx, client)
	sess.mu.Lock()
	snapshot := sess.ctrl.Snapshot()
	sess.mu.Unlock()
	return client.Send(NewReply(msg, MessageTypePlaybackSnapshot, snapshot))
}

package stream

import (
	"context"
	"fmt"

	feeds "github.com/GetStream/stream-go2/v8"
	"github.com/google/uuid"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Feed groups configured in the Stream dashboard
const (
	FeedGroupUser   = "user"
	FeedGroupGlobal = "global"
	GlobalFeedID    = "main"

	VerbPosted   = "posted"
	ReactionLike = "like"
)

// FeedsAPI is the part of the activity feeds client the wrapper uses
type FeedsAPI interface {
	AddActivity(ctx context.Context, group, feedID string, activity feeds.Activity) (string, error)
	RemoveActivityByForeignID(ctx context.Context, group, feedID, foreignID string) error
	AddReaction(ctx context.Context, req feeds.AddReactionRequestObject) error
	DeleteReaction(ctx context.Context, reactionID string) error
}

type feedsClient struct {
	client *feeds.Client
}

func feedsClientAdapter(client *feeds.Client) FeedsAPI {
	return feedsClient{client: client}
}

func (f feedsClient) AddActivity(ctx context.Context, group, feedID string, activity feeds.Activity) (string, error) {
	feed, err := f.client.FlatFeed(group, feedID)
	if err != nil {
		return "", err
	}
	resp, err := feed.AddActivity(ctx, activity)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (f feedsClient) RemoveActivityByForeignID(ctx context.Context, group, feedID, foreignID string) error {
	feed, err := f.client.FlatFeed(group, feedID)
	if err != nil {
		return err
	}
	_, err = feed.RemoveActivityByForeignID(ctx, foreignID)
	return err
}

func (f feedsClient) AddReaction(ctx context.Context, req feeds.AddReactionRequestObject) error {
	_, err := f.client.Reactions().Add(ctx, req)
	return err
}

func (f feedsClient) DeleteReaction(ctx context.Context, reactionID string) error {
	_, err := f.client.Reactions().Delete(ctx, reactionID)
	return err
}

// FeedsEnabled reports whether activity mirroring is wired
func (c *Client) FeedsEnabled() bool {
	return c != nil && c.feeds != nil
}

// PublishVideoActivity posts a video to its owner's feed, fanned out to the
// global feed, and returns the Stream activity id
func (c *Client) PublishVideoActivity(ctx context.Context, video *models.Video) (string, error) {
	if !c.FeedsEnabled() {
		return "", nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "add_activity",
		attribute.String("video.id", video.ID), attribute.String("user.id", video.UserID))
	id, err := c.feeds.AddActivity(ctx, FeedGroupUser, video.UserID, feeds.Activity{
		Actor:     video.UserID,
		Verb:      VerbPosted,
		Object:    VideoForeignID(video.ID),
		ForeignID: VideoForeignID(video.ID),
		Time:      feeds.Time{Time: video.PublishedAt.UTC()},
		To:        []string{FeedGroupGlobal + ":" + GlobalFeedID},
		Extra: map[string]any{
			"title":            video.Title,
			"video_url":        video.VideoURL,
			"thumbnail_url":    video.ThumbnailURL,
			"duration_seconds": video.DurationSeconds,
			"tags":             video.Tags,
		},
	})
	telemetry.End(span, err)
	if err != nil {
		return "", fmt.Errorf("failed to add video activity: %w", err)
	}
	return id, nil
}

// RemoveVideoActivity deletes a video's activity from the owner and global feeds
func (c *Client) RemoveVideoActivity(ctx context.Context, video *models.Video) error {
	if !c.FeedsEnabled() {
		return nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "remove_activity", attribute.String("video.id", video.ID))
	foreignID := VideoForeignID(video.ID)
	err := c.feeds.RemoveActivityByForeignID(ctx, FeedGroupUser, video.UserID, foreignID)
	if err == nil {
		err = c.feeds.RemoveActivityByForeignID(ctx, FeedGroupGlobal, GlobalFeedID, foreignID)
	}
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to remove video activity: %w", err)
	}
	return nil
}

// AddLikeReaction records a like against the video's activity. Videos that
// were never mirrored are skipped.
func (c *Client) AddLikeReaction(ctx context.Context, userID string, video *models.Video) error {
	if !c.FeedsEnabled() || video.StreamActivityID == "" {
		return nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "add_reaction",
		attribute.String("video.id", video.ID), attribute.String("user.id", userID))
	err := c.feeds.AddReaction(ctx, feeds.AddReactionRequestObject{
		ID:         LikeReactionID(userID, video.ID),
		Kind:       ReactionLike,
		ActivityID: video.StreamActivityID,
		UserID:     userID,
	})
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to add like reaction: %w", err)
	}
	return nil
}

// RemoveLikeReaction deletes the reaction AddLikeReaction created
func (c *Client) RemoveLikeReaction(ctx context.Context, userID, videoID string) error {
	if !c.FeedsEnabled() {
		return nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "delete_reaction", attribute.String("video.id", videoID))
	err := c.feeds.DeleteReaction(ctx, LikeReactionID(userID, videoID))
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to remove like reaction: %w", err)
	}
	return nil
}

// VideoForeignID is the foreign id a video's activity is stored under
func VideoForeignID(videoID string) string {
	return "video:" + videoID
}

// LikeReactionID is stable per (user, video) so the reaction can be deleted
// without storing its id
func LikeReactionID(userID, videoID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("like:"+userID+":"+videoID)).String()
}

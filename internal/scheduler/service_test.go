package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/reelhub/backend/internal/videos"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

type fakeNotifier struct {
	inputs []notify.Input
}

func (f *fakeNotifier) Notify(_ context.Context, in notify.Input) (*models.Notification, error) {
	f.inputs = append(f.inputs, in)
	return &models.Notification{UserID: in.UserID, Kind: in.Kind}, nil
}

type recordingFeed struct {
	published []string
}

func (f *recordingFeed) PublishVideoActivity(_ context.Context, v *models.Video) (string, error) {
	f.published = append(f.published, v.Title)
	return "act-" + v.ID, nil
}

func (f *recordingFeed) RemoveVideoActivity(context.Context, *models.Video) error { return nil }

func (f *recordingFeed) AddLikeReaction(context.Context, string, *models.Video) error { return nil }

func (f *recordingFeed) RemoveLikeReaction(context.Context, string, string) error { return nil }

type SchedulerTestSuite struct {
	suite.Suite
	db       *gorm.DB
	pub      *testutil.Publisher
	notifier *fakeNotifier
	svc      *Service
	ctx      context.Context
	owner    *models.User
	now      time.Time
}

func (s *SchedulerTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.pub = testutil.NewPublisher()
	s.notifier = &fakeNotifier{}
	s.svc = NewService(s.db, videos.NewService(s.db, videos.Deps{}), s.pub, s.notifier)
	s.now = time.Now().UTC().Truncate(time.Second)
	s.svc.now = func() time.Time { return s.now }
	s.ctx = context.Background()
	s.owner = testutil.CreateUser(s.T(), s.db, "creator")
}

func (s *SchedulerTestSuite) schedule(title string, in time.Duration) *models.ScheduledVideo {
	sv, err := s.svc.Create(s.ctx, s.owner.ID, CreateInput{
		CreateInput: videos.CreateInput{
			Title:           title,
			Description:     "launch day #reels",
			VideoURL:        "https://cdn.test/videos/" + title + ".mp4",
			DurationSeconds: 12,
			Renditions:      []models.RenditionSpec{{Label: "720p", Height: 720, BitrateKbps: 2500, URL: "https://cdn.test/720.m3u8"}},
		},
		PublishAt: s.now.Add(in),
	})
	s.Require().NoError(err)
	return sv
}

func (s *SchedulerTestSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *SchedulerTestSuite) TestCreateRequiresFuturePublishTime() {
	_, err := s.svc.Create(s.ctx, s.owner.ID, CreateInput{
		CreateInput: videos.CreateInput{Title: "late", VideoURL: "https://cdn.test/late.mp4"},
		PublishAt:   s.now.Add(-time.Minute),
	})
	s.ErrorIs(err, ErrInvalidSchedule)

	_, err = s.svc.Create(s.ctx, s.owner.ID, CreateInput{
		CreateInput: videos.CreateInput{Title: " ", VideoURL: "https://cdn.test/x.mp4"},
		PublishAt:   s.now.Add(time.Hour),
	})
	s.ErrorIs(err, ErrInvalidSchedule)

	sv := s.schedule("teaser", time.Hour)
	s.Equal(models.ScheduledStatusPending, sv.Status)
	s.Len(s.pub.Table(Table), 1)
}

func (s *SchedulerTestSuite) TestRunOncePublishesDueVideos() {
	due := s.schedule("due", time.Minute)
	future := s.schedule("future", 2*time.Hour)

	// Row that cannot be published
	broken := &models.ScheduledVideo{
		UserID: s.owner.ID, Title: "broken", PublishAt: s.now, Status: models.ScheduledStatusPending,
	}
	s.Require().NoError(s.db.Create(broken).Error)

	s.advance(5 * time.Minute)
	summary, err := s.svc.RunOnce(s.ctx, 10)
	s.Require().NoError(err)

	s.Equal(2, summary.Processed)
	s.Equal(1, summary.Published)
	s.Equal(1, summary.Failed)
	s.Require().Len(summary.Results, 2)

	byID := map[string]ItemResult{}
	for _, r := range summary.Results {
		byID[r.ScheduledVideoID] = r
	}
	s.Equal(models.ScheduledStatusFailed, byID[broken.ID].Status)
	s.NotEmpty(byID[broken.ID].Error)
	published := byID[due.ID]
	s.Equal(models.ScheduledStatusPublished, published.Status)
	s.NotEmpty(published.VideoID)

	var video models.Video
	s.Require().NoError(s.db.First(&video, "id = ?", published.VideoID).Error)
	s.Equal("due", video.Title)
	s.Equal(models.VideoStatusLive, video.Status)
	s.Require().NotNil(video.ScheduledVideoID)
	s.Equal(due.ID, *video.ScheduledVideoID)

	stored, err := s.svc.Get(s.ctx, s.owner.ID, due.ID)
	s.Require().NoError(err)
	s.Equal(models.ScheduledStatusPublished, stored.Status)
	s.Equal(1, stored.Attempts)
	s.NotNil(stored.PublishedAt)

	failed, err := s.svc.Get(s.ctx, s.owner.ID, broken.ID)
	s.Require().NoError(err)
	s.Equal(models.ScheduledStatusFailed, failed.Status)
	s.NotEmpty(failed.LastError)

	left, err := s.svc.Get(s.ctx, s.owner.ID, future.ID)
	s.Require().NoError(err)
	s.Equal(models.ScheduledStatusPending, left.Status)

	var updates int
	for _, ev := range s.pub.Table(Table) {
		if ev.Type == realtime.EventUpdate {
			updates++
		}
	}
	s.Equal(2, updates)

	s.Require().Len(s.notifier.inputs, 1)
	s.Equal(models.NotificationVideoPublish, s.notifier.inputs[0].Kind)
}

func (s *SchedulerTestSuite) TestRunOnceIsIdempotent() {
	s.schedule("once", time.Minute)
	s.advance(time.Hour)

	first, err := s.svc.RunOnce(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(1, first.Published)

	second, err := s.svc.RunOnce(s.ctx, 10)
	s.Require().NoError(err)
	s.Zero(second.Processed)

	var count int64
	s.Require().NoError(s.db.Model(&models.Video{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *SchedulerTestSuite) TestRunOnceHonoursBatchSize() {
	for _, title := range []string{"a", "b", "c"} {
		s.schedule(title, time.Minute)
	}
	s.advance(time.Hour)

	summary, err := s.svc.RunOnce(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(2, summary.Published)

	summary, err = s.svc.RunOnce(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(1, summary.Published)
}

func (s *SchedulerTestSuite) TestCancel() {
	sv := s.schedule("maybe", time.Hour)

	cancelled, err := s.svc.Cancel(s.ctx, s.owner.ID, sv.ID)
	s.Require().NoError(err)
	s.Equal(models.ScheduledStatusCancelled, cancelled.Status)

	_, err = s.svc.Cancel(s.ctx, s.owner.ID, sv.ID)
	s.ErrorIs(err, ErrNotPending)

	_, err = s.svc.Cancel(s.ctx, "someone-else", sv.ID)
	s.ErrorIs(err, ErrNotFound)

	// Cancelled rows are never published
	s.advance(2 * time.Hour)
	summary, err := s.svc.RunOnce(s.ctx, 10)
	s.Require().NoError(err)
	s.Zero(summary.Processed)
}

func (s *SchedulerTestSuite) TestList() {
	later := s.schedule("later", 2*time.Hour)
	sooner := s.schedule("sooner", time.Hour)
	_, err := s.svc.Cancel(s.ctx, s.owner.ID, later.ID)
	s.Require().NoError(err)

	all, total, err := s.svc.List(s.ctx, s.owner.ID, "", 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal(sooner.ID, all[0].ID)

	pending, total, err := s.svc.List(s.ctx, s.owner.ID, models.ScheduledStatusPending, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(sooner.ID, pending[0].ID)
}

func (s *SchedulerTestSuite) TestRunLockedSkipsWhenContended() {
	s.schedule("locked", time.Minute)
	s.advance(time.Hour)

	locks := cache.NewMemory()
	release, ok, err := locks.AcquireLock(s.ctx, LockKey, time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	summary, ran, err := RunLocked(s.ctx, s.svc, locks, time.Minute, 10)
	s.Require().NoError(err)
	s.False(ran)
	s.Nil(summary)

	release()
	summary, ran, err = RunLocked(s.ctx, s.svc, locks, time.Minute, 10)
	s.Require().NoError(err)
	s.True(ran)
	s.Equal(1, summary.Published)

	// The lock is released after the pass
	_, ok, err = locks.AcquireLock(s.ctx, LockKey, time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *SchedulerTestSuite) TestRunnerPublishesOnStart() {
	sv := s.schedule("boot", time.Minute)
	s.advance(time.Hour)

	runner := NewRunner(s.svc, cache.NewMemory(), config.SchedulerConfig{Interval: time.Hour, BatchSize: 10})
	runner.Start()

	s.Eventually(func() bool {
		stored, err := s.svc.Get(s.ctx, s.owner.ID, sv.ID)
		return err == nil && stored.Status == models.ScheduledStatusPublished
	}, 5*time.Second, 20*time.Millisecond)

	runner.Stop()
}

func (s *SchedulerTestSuite) TestPublishedVideosReachActivityFeed() {
	feed := &recordingFeed{}
	s.svc = NewService(s.db, videos.NewService(s.db, videos.Deps{Feed: feed}), s.pub, s.notifier)
	s.svc.now = func() time.Time { return s.now }

	s.schedule("premiere", time.Minute)
	s.advance(2 * time.Minute)
	summary, err := s.svc.RunOnce(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Equal(1, summary.Published)
	s.Equal([]string{"premiere"}, feed.published)

	var video models.Video
	s.Require().NoError(s.db.First(&video, "id = ?", summary.Results[0].VideoID).Error)
	s.Equal("act-"+video.ID, video.StreamActivityID)
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

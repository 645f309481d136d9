package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	chat "github.com/GetStream/stream-chat-go/v5"
	"github.com/reelhub/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	users    []*chat.User
	channels []string
	deleted  []string
	err      error
}

func (f *fakeChat) UpsertUser(_ context.Context, user *chat.User) (*chat.UpsertUserResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.users = append(f.users, user)
	return &chat.UpsertUserResponse{User: user}, nil
}

func (f *fakeChat) CreateToken(userID string, _ time.Time, _ ...time.Time) (string, error) {
	return "token-" + userID, nil
}

func (f *fakeChat) CreateChannel(_ context.Context, chanType, chanID, _ string, _ *chat.ChannelRequest) (*chat.CreateChannelResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.channels = append(f.channels, chanType+":"+chanID)
	return &chat.CreateChannelResponse{Channel: &chat.Channel{ID: chanID, Type: chanType}}, nil
}

func (f *fakeChat) DeleteChannels(_ context.Context, cids []string, _ bool) (*chat.AsyncTaskResponse, error) {
	f.deleted = append(f.deleted, cids...)
	return &chat.AsyncTaskResponse{}, f.err
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.StreamConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpsertUser(t *testing.T) {
	api := &fakeChat{}
	c := NewClientWithAPI(api, "key")

	require.NoError(t, c.UpsertUser(context.Background(), "u1", "alice", "https://cdn/a.png"))
	require.Len(t, api.users, 1)
	assert.Equal(t, "alice", api.users[0].Name)
	assert.Equal(t, "https://cdn/a.png", api.users[0].Image)

	api.err = errors.New("boom")
	assert.ErrorContains(t, c.UpsertUser(context.Background(), "u1", "alice", ""), "boom")
}

func TestLivestreamChannelLifecycle(t *testing.T) {
	api := &fakeChat{}
	c := NewClientWithAPI(api, "key")

	cid, err := c.CreateLivestreamChannel(context.Background(), "s1", "owner", "Launch day")
	require.NoError(t, err)
	assert.Equal(t, "livestream:s1", cid)
	assert.Equal(t, []string{"livestream:s1"}, api.channels)

	require.NoError(t, c.CloseLivestreamChannel(context.Background(), cid))
	assert.Equal(t, []string{"livestream:s1"}, api.deleted)
}

func TestCreateToken(t *testing.T) {
	c := NewClientWithAPI(&fakeChat{}, "key")
	token, err := c.CreateToken("u1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "token-u1", token)
	assert.Equal(t, "key", c.APIKey())
}

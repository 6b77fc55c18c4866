package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/model"
)

func TestRegistryResolveUnknownPlatform(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(model.PlatformDiscord)
	require.Error(t, err)
}

func TestRegistryDisabledAdapterRejectsAllOperations(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDisabledAdapter(model.PlatformSlack, "SLACK_CLIENT_ID not set"))

	a, err := r.Resolve(model.PlatformSlack)
	require.NoError(t, err)
	require.Equal(t, model.PlatformSlack, a.Name())

	_, err = a.FetchNewMessages(context.Background(), "user-1", time.Now(), Credentials{})
	require.Error(t, err)

	result := a.SendMessage(context.Background(), "thread-1", "hi", Credentials{}, SendOpts{})
	require.False(t, result.OK)
	require.Error(t, result.Err)
}

func TestRegistryPlatformsListsRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDisabledAdapter(model.PlatformGmail, "not configured"))
	r.Register(NewDisabledAdapter(model.PlatformSlack, "not configured"))

	platforms := r.Platforms()
	require.Len(t, platforms, 2)
}

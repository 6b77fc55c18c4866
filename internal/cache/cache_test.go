package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheKeysAreNamespacedAndStable(t *testing.T) {
	c := New(nil)
	require.Equal(t, "cache:feed:user-1", c.FeedKey("user-1"))
	require.Equal(t, "cache:thread:user-1:gmail:t1", c.ThreadKey("user-1", "gmail", "t1"))
	require.Equal(t, "cache:contact:user-1:slack:U1", c.ContactKey("user-1", "slack", "U1"))
	require.Equal(t, "cache:sync:user-1:gmail", c.SyncKey("user-1", "gmail"))
}

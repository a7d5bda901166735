package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/core"
)

func Test_newKeys(t *testing.T) {
	t.Run("WithEmptyPrefix", func(t *testing.T) {
		k := newKeys("")
		require.Empty(t, k.prefix)
		require.Equal(t, "instance:i", k.instanceKey("i"))
	})

	t.Run("WithNonEmptyPrefixWithoutColon", func(t *testing.T) {
		k := newKeys("prefix")
		require.Equal(t, "prefix:", k.prefix)
		require.Equal(t, "prefix:queue:activities", k.queueKey(core.QueueActivities))
	})

	t.Run("WithNonEmptyPrefixWithColon", func(t *testing.T) {
		k := newKeys("prefix:")
		require.Equal(t, "prefix:", k.prefix)
		require.Equal(t, "prefix:history:i", k.historyKey("i"))
	})
}

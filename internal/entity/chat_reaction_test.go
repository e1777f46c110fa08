package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_GroupReactions(t *testing.T) {
	groups := GroupReactions([]ChatReaction{
		{UserID: "u1", Emoji: "👍"},
		{UserID: "u2", Emoji: "🎉"},
		{UserID: "u2", Emoji: "👍"},
	})

	require.Len(t, groups, 2)
	require.Equal(t, "👍", groups[0].Emoji)
	require.Equal(t, 2, groups[0].Count())
	require.True(t, groups[0].Contains("u1"))
	require.False(t, groups[1].Contains("u1"))
}

func Test_GroupReactions_Empty(t *testing.T) {
	require.Empty(t, GroupReactions(nil))
}

package feedback

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func thread(id, parent string) *discordgo.Channel {
	return &discordgo.Channel{ID: id, ParentID: parent, Type: discordgo.ChannelTypeGuildPublicThread}
}

func TestThreadTrackerSeedAndForget(t *testing.T) {
	tr := NewThreadTracker("forum")
	n := tr.Seed([]*discordgo.Channel{thread("a", "forum"), thread("b", "elsewhere"), nil})
	assert.Equal(t, 1, n)

	tracked, known := tr.Lookup("a")
	assert.True(t, known)
	assert.True(t, tracked)
	tracked, known = tr.Lookup("b")
	assert.True(t, known)
	assert.False(t, tracked)

	tr.Forget("a")
	_, known = tr.Lookup("a")
	assert.False(t, known)
}

func TestThreadTrackerIgnoresForumItself(t *testing.T) {
	tr := NewThreadTracker("forum")
	tr.Observe(&discordgo.Channel{ID: "x", ParentID: "forum", Type: discordgo.ChannelTypeGuildText})
	tracked, _ := tr.Lookup("x")
	assert.False(t, tracked)
}

func TestThreadTrackerResolveCaches(t *testing.T) {
	tr := NewThreadTracker("forum")
	calls := 0
	fetch := func(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
		calls++
		if id == "gone" {
			return nil, errors.New("404")
		}
		return thread(id, "forum"), nil
	}

	ok, err := tr.Resolve("t1", fetch)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tr.Resolve("t1", fetch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	_, err = tr.Resolve("gone", fetch)
	assert.Error(t, err)
}

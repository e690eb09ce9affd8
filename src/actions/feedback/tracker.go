package feedback

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ThreadTracker remembers which channels are threads of the feedback forum.
// Channels it has never seen are looked up once and the answer is cached.
type ThreadTracker struct {
	forumID string

	mu    sync.RWMutex
	known map[string]bool
}

func NewThreadTracker(forumID string) *ThreadTracker {
	return &ThreadTracker{forumID: forumID, known: make(map[string]bool)}
}

// Observe records ch, which may be any channel.
func (t *ThreadTracker) Observe(ch *discordgo.Channel) {
	if ch == nil || ch.ID == "" {
		return
	}
	t.mu.Lock()
	t.known[ch.ID] = t.isForumThread(ch)
	t.mu.Unlock()
}

// Seed records a batch of channels and returns how many are forum threads.
func (t *ThreadTracker) Seed(channels []*discordgo.Channel) int {
	n := 0
	for _, ch := range channels {
		t.Observe(ch)
		if t.isForumThread(ch) {
			n++
		}
	}
	return n
}

// Forget drops a deleted channel.
func (t *ThreadTracker) Forget(id string) {
	t.mu.Lock()
	delete(t.known, id)
	t.mu.Unlock()
}

// Lookup returns whether id is a forum thread and whether the answer is known.
func (t *ThreadTracker) Lookup(id string) (tracked, known bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tracked, known = t.known[id]
	return tracked, known
}

// Resolve answers from the cache, fetching the channel on a miss.
func (t *ThreadTracker) Resolve(id string, fetch func(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)) (bool, error) {
	if tracked, known := t.Lookup(id); known {
		return tracked, nil
	}
	ch, err := fetch(id)
	if err != nil {
		return false, err
	}
	t.Observe(ch)
	return t.isForumThread(ch), nil
}

func (t *ThreadTracker) isForumThread(ch *discordgo.Channel) bool {
	return ch != nil && t.forumID != "" && ch.ParentID == t.forumID && ch.IsThread()
}

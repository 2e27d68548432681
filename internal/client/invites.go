package client

import (
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultInviteTTL is how long an unanswered invitation is remembered.
const DefaultInviteTTL = 2 * time.Minute

// inviteTracker remembers the users we invited until they answer or the
// invitation expires.
type inviteTracker struct {
	pending *gocache.Cache
}

func newInviteTracker(ttl time.Duration) *inviteTracker {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &inviteTracker{pending: gocache.New(ttl, ttl)}
}

func (t *inviteTracker) add(target string) {
	t.pending.SetDefault(target, time.Now())
}

// resolve forgets the invitation to user, reporting whether there was one.
func (t *inviteTracker) resolve(user string) bool {
	if _, found := t.pending.Get(user); !found {
		return false
	}
	t.pending.Delete(user)
	return true
}

// list returns the users with an outstanding invitation in name order.
func (t *inviteTracker) list() []string {
	items := t.pending.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

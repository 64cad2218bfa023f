package cache

import "github.com/jonwraymond/querycache/fingerprint"

// Subscription is a live listener on one cache key. The number of live
// subscriptions on a key is the entry's subscriber count.
//
// Updates delivers the latest snapshot after every transition of the entry.
// The channel holds at most one value; a slow reader skips intermediate
// snapshots but always sees the most recent one. It is closed on Unsubscribe.
type Subscription struct {
	id  uint64
	key fingerprint.Key
	ch  chan Snapshot
}

func newSubscription(id uint64, key fingerprint.Key) *Subscription {
	return &Subscription{
		id:  id,
		key: key,
		ch:  make(chan Snapshot, 1),
	}
}

// Key returns the subscribed cache key.
func (s *Subscription) Key() fingerprint.Key {
	return s.key
}

// Updates returns the snapshot channel.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// push replaces any undelivered snapshot with snap. Caller must hold the
// store lock, which makes the store the only sender.
func (s *Subscription) push(snap Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

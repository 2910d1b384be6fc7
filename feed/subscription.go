package feed

import (
	"sort"
	"sync"
)

// subscribers is the session registry of one scalar topic. Entries are
// non-owning: closed sessions are swept out whenever the registry is read.
type subscribers struct {
	mu       sync.Mutex
	sessions map[uint64]Session
}

func newSubscribers() *subscribers {
	return &subscribers{sessions: make(map[uint64]Session)}
}

func (s *subscribers) add(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID()] = sess
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// snapshot sweeps dead sessions and returns the live ones in stable
// order. Delivery order across sessions is unspecified; stable order
// keeps behavior reproducible.
func (s *subscribers) snapshot() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make([]Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.Closed() {
			delete(s.sessions, id)
			continue
		}
		live = append(live, sess)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].SessionID() < live[j].SessionID() })
	return live
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Closed() {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}

// keyedSubscribers tracks per-key registries for keyed topics (accounts,
// books). Empty keys are released eagerly on unsubscribe and lazily when
// a sweep leaves them empty.
type keyedSubscribers struct {
	mu   sync.Mutex
	keys map[string]*subscribers
}

func newKeyedSubscribers() *keyedSubscribers {
	return &keyedSubscribers{keys: make(map[string]*subscribers)}
}

func (k *keyedSubscribers) add(key string, sess Session) {
	k.mu.Lock()
	defer k.mu.Unlock()
	subs, ok := k.keys[key]
	if !ok {
		subs = newSubscribers()
		k.keys[key] = subs
	}
	subs.add(sess)
}

func (k *keyedSubscribers) remove(key string, id uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	subs, ok := k.keys[key]
	if !ok {
		return
	}
	subs.remove(id)
	if subs.count() == 0 {
		delete(k.keys, key)
	}
}

func (k *keyedSubscribers) snapshot(key string) []Session {
	k.mu.Lock()
	subs, ok := k.keys[key]
	k.mu.Unlock()
	if !ok {
		return nil
	}
	return subs.snapshot()
}

// count is the aggregate number of live subscriptions across all keys.
func (k *keyedSubscribers) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	total := 0
	for key, subs := range k.keys {
		n := subs.count()
		if n == 0 {
			delete(k.keys, key)
			continue
		}
		total += n
	}
	return total
}

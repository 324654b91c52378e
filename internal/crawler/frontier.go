package crawler

import "sync"

// Frontier is the queue of discovered-but-not-yet-fetched URLs for one
// crawl, with a visited set keyed by DedupeKey. Safe for use from
// concurrent fetch workers.
type Frontier struct {
	mu    sync.Mutex
	queue []string
	seen  map[string]struct{}
}

// NewFrontier creates a Frontier seeded with the given URLs.
func NewFrontier(seeds ...string) *Frontier {
	f := &Frontier{seen: make(map[string]struct{})}
	for _, seed := range seeds {
		f.Push(seed)
	}
	return f
}

// Push enqueues the URL unless its dedupe key has been seen before.
// Returns true when the URL was accepted.
func (f *Frontier) Push(rawURL string) bool {
	key := DedupeKey(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[key]; dup {
		return false
	}

	f.seen[key] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Pop dequeues the next URL in breadth-first order. The second return
// is false when the frontier is empty.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}

	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns the number of distinct URLs ever accepted.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

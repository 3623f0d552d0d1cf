package correlation

import "sync"

// DefaultIssueCapacity is the issue log size when none is configured.
const DefaultIssueCapacity = 1024

// issueLog is a bounded ring of issues. When full, the oldest issue is
// overwritten and counted as dropped.
type issueLog struct {
	mu      sync.Mutex
	buf     []Issue
	start   int
	size    int
	dropped int64
}

func newIssueLog(capacity int) *issueLog {
	if capacity <= 0 {
		capacity = DefaultIssueCapacity
	}
	return &issueLog{buf: make([]Issue, capacity)}
}

func (l *issueLog) append(issue Issue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = issue
		l.size++
		return
	}
	l.buf[l.start] = issue
	l.start = (l.start + 1) % len(l.buf)
	l.dropped++
}

// snapshot returns the issues oldest first, as a fresh slice.
func (l *issueLog) snapshot() []Issue {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Issue, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)].clone()
	}
	return out
}

func (l *issueLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.buf)
	l.start = 0
	l.size = 0
	l.dropped = 0
}

func (l *issueLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *issueLog) droppedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

package wiretest

import (
	"strings"
	"sync"
)

// Stub routes request lines to queued replies by prefix.  Each route
// replays its replies in order and then keeps repeating the last one.
// Lines matching no route get Fallback.
type Stub struct {
	Fallback string

	mu     sync.Mutex
	routes []*route
}

type route struct {
	prefix  string
	replies []string
}

// NewStub returns a stub whose unrouted lines are answered with an
// unrecognized reply.
func NewStub() *Stub { return &Stub{Fallback: "UNROUTED"} }

// On queues replies for request lines starting with prefix.
func (s *Stub) On(prefix string, replies ...string) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, &route{prefix: prefix, replies: replies})
	return s
}

// Handle implements [Handler].
func (s *Stub) Handle(line string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.routes {
		if !strings.HasPrefix(line, r.prefix) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[0]
		if len(r.replies) > 1 {
			r.replies = r.replies[1:]
		}
		return reply
	}
	return s.Fallback
}

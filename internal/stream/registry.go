package stream

import (
	"sync"
	"time"

	"talkbot/internal/domain"
)

// pruneTTL is how long finished requests linger before Push drops them.
const pruneTTL = 10 * time.Minute

// Request tracks one in-flight (or recently finished) streaming exchange.
type Request struct {
	UUID   string
	Stream domain.ChatStream
	Done   bool
	FromID int64
	ChatID int64

	finishedAt time.Time
}

// Registry is the shared table of active streaming requests, keyed by uuid.
// Cancellation is cooperative: Abort marks the entry done and the consumer
// observes the flag at its next chunk or tick boundary.
type Registry struct {
	mu   sync.Mutex
	reqs map[string]*Request
}

func NewRegistry() *Registry {
	return &Registry{reqs: make(map[string]*Request)}
}

// Push registers a new request. Finished entries past their ttl are pruned
// opportunistically here.
func (r *Registry) Push(req *Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, old := range r.reqs {
		if old.Done && now.Sub(old.finishedAt) > pruneTTL {
			delete(r.reqs, id)
		}
	}
	r.reqs[req.UUID] = req
}

// Get returns a copy of the request state, or nil when unknown.
func (r *Registry) Get(uuid string) *Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[uuid]
	if !ok {
		return nil
	}
	cp := *req
	return &cp
}

// Done reports whether the request is unknown or has finished. Unknown
// requests count as done so consumers stop after a prune.
func (r *Registry) Done(uuid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[uuid]
	return !ok || req.Done
}

// Finish marks the request completed without aborting its stream.
func (r *Registry) Finish(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req, ok := r.reqs[uuid]; ok && !req.Done {
		req.Done = true
		req.finishedAt = time.Now()
	}
}

// Abort cancels the request. The first call marks it done, tears down the
// stream and returns true; later calls and unknown uuids return false.
func (r *Registry) Abort(uuid string) bool {
	r.mu.Lock()
	req, ok := r.reqs[uuid]
	if !ok || req.Done {
		r.mu.Unlock()
		return false
	}
	req.Done = true
	req.finishedAt = time.Now()
	stream := req.Stream
	r.mu.Unlock()

	if stream != nil {
		stream.Abort()
	}
	return true
}

// Package progress fans out per-job progress events to in-process
// subscribers. It is independent of persistence: the store is the
// durable record, this is the live feed.
package progress

import "sync"

// Event is one progress update or terminal notification for a job.
type Event struct {
	Type     string `json:"type"` // "progress" | "results" | "done"
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
}

const subscriberBuffer = 32

// Publisher delivers events to subscribers per job id. Events for a
// single job are delivered in publish order; a slow subscriber that
// fills its buffer misses intermediate events rather than blocking the
// worker.
type Publisher struct {
	mu   sync.Mutex
	subs map[uint]map[chan Event]struct{}
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[uint]map[chan Event]struct{})}
}

// Subscribe registers for a job's events. The returned cancel func must
// be called once the caller is done; it is safe to call after Close.
func (p *Publisher) Subscribe(jobID uint) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	p.mu.Lock()
	if p.subs[jobID] == nil {
		p.subs[jobID] = make(map[chan Event]struct{})
	}
	p.subs[jobID][ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			if set, ok := p.subs[jobID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
					if len(set) == 0 {
						delete(p.subs, jobID)
					}
				}
			}
			p.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers an event to all current subscribers of the job.
func (p *Publisher) Publish(jobID uint, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs[jobID] {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop rather than stall the worker
		}
	}
}

// Close ends the job's stream: all subscriber channels are closed and
// removed. Called after the terminal event is published.
func (p *Publisher) Close(jobID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs[jobID] {
		close(ch)
	}
	delete(p.subs, jobID)
}

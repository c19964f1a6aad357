package events

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// queueSize is the per-worker event buffer.
const queueSize = 100

// publishTimeout bounds a single delivery to a single sink.
const publishTimeout = 15 * time.Second

// Stats counts deliveries since start.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Dispatcher is a fixed pool of workers delivering events to every
// publisher.
//
// Events of the same complaint always go to the same worker, so each sink
// sees them in the order they happened. Submit never blocks: when a worker's
// queue is full the event is dropped and counted.
type Dispatcher struct {
	publishers []Publisher
	queues     []chan Event
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts workerCount workers (at least one).
func NewDispatcher(workerCount int, publishers ...Publisher) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	log.Printf("  → Starting event dispatcher with %d workers and %d sinks", workerCount, len(publishers))

	d := &Dispatcher{
		publishers: publishers,
		queues:     make([]chan Event, workerCount),
	}
	for i := range d.queues {
		d.queues[i] = make(chan Event, queueSize)
		d.wg.Add(1)
		go d.worker(i+1, d.queues[i])
	}
	return d
}

// Submit queues ev for delivery.
func (d *Dispatcher) Submit(ev Event) {
	if d == nil || len(d.publishers) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	q := d.queues[d.shard(ev.Complaint.ID)]
	select {
	case q <- ev:
	default:
		d.dropped.Add(1)
		log.Printf("⚠️  Event queue full, dropping %s event for %s", ev.Kind, ev.Complaint.ComplaintNumber)
	}
}

// Close stops accepting events, drains the queues and waits for the
// workers to finish.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	log.Println("  ✓ Event dispatcher stopped")
}

// Stats returns the delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(id int, jobs <-chan Event) {
	defer d.wg.Done()

	for ev := range jobs {
		for _, p := range d.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := p.Publish(ctx, ev)
			cancel()

			if err != nil {
				d.failed.Add(1)
				log.WithFields(log.Fields{
					"worker": id,
					"sink":   p.Name(),
					"kind":   ev.Kind,
				}).Warnf("✗ Failed to deliver event for %s: %v", ev.Complaint.ComplaintNumber, err)
				continue
			}
			d.delivered.Add(1)
		}
	}
}

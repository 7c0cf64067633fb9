package stream

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is the wire shape pushed to finance dashboards when a
// payment is posted.
type PaymentEvent struct {
	PaymentID   string          `json:"payment_id"`
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Term        int             `json:"term"`
	ReceiptNo   string          `json:"receipt_no"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Stream fan-outs payment events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan PaymentEvent
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan PaymentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan PaymentEvent {
	ch := make(chan PaymentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt PaymentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

package notify

import (
	"sync"
	"testing"
)

type recordSink struct {
	mu   sync.Mutex
	seen []Notification
}

func (s *recordSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
}

func TestHubFansOutAndForwards(t *testing.T) {
	next := &recordSink{}
	h := NewHub(next)

	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	t.Cleanup(cancel1)
	t.Cleanup(cancel2)

	h.Notify(Notification{TaskID: "t1", Message: "due soon"})

	for _, ch := range []<-chan Notification{ch1, ch2} {
		select {
		case n := <-ch:
			if n.TaskID != "t1" {
				t.Errorf("TaskID = %s", n.TaskID)
			}
		default:
			t.Error("subscriber did not receive notification")
		}
	}

	if len(next.seen) != 1 {
		t.Errorf("downstream sink got %d notifications, want 1", len(next.seen))
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()

	cancel()
	cancel() // double cancel is safe

	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}

	// Delivery after unsubscribe must not panic.
	h.Notify(Notification{TaskID: "t1"})
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	t.Cleanup(cancel)

	// Overflow the buffer; Notify must never block.
	for i := 0; i < 40; i++ {
		h.Notify(Notification{TaskID: "t"})
	}

	if got := len(ch); got > 16 {
		t.Errorf("buffered %d notifications, want at most 16", got)
	}
}

func TestSinkFunc(t *testing.T) {
	var got Notification
	s := SinkFunc(func(n Notification) { got = n })
	s.Notify(Notification{TaskID: "t9"})
	if got.TaskID != "t9" {
		t.Errorf("TaskID = %s", got.TaskID)
	}
}

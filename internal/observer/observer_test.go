package observer

import (
	"testing"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func TestRingBufferCapacity(t *testing.T) {
	o := New(5)
	for i := 0; i < 12; i++ {
		o.Emit(models.TraceGeneric, map[string]any{"i": i})
	}
	if o.Len() != 5 {
		t.Fatalf("len = %d, want 5", o.Len())
	}
	recent := o.ListRecent(5)
	if len(recent) != 5 {
		t.Fatalf("listRecent len = %d", len(recent))
	}
	// The last 5 emitted were i=7..11, in order.
	for idx, ev := range recent {
		want := int64(7 + idx)
		got, _ := ev.Data["i"].(int)
		if int64(got) != want {
			t.Fatalf("event %d = %v, want i=%d", idx, ev.Data, want)
		}
	}
}

func TestListRecentDefaultLimit(t *testing.T) {
	o := New(DefaultCapacity)
	for i := 0; i < 10; i++ {
		o.Emit(models.TraceGeneric, nil)
	}
	recent := o.ListRecent(0)
	if len(recent) != 10 {
		t.Fatalf("len = %d, want 10", len(recent))
	}
}

func TestSubscribeNonBlocking(t *testing.T) {
	o := New(DefaultCapacity)
	id, ch := o.Subscribe()
	defer o.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+10; i++ {
		o.Emit(models.TraceGeneric, map[string]any{"i": i})
	}
	if o.DroppedCount() == 0 {
		t.Fatal("expected some drops for an unread subscriber channel")
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered event")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	o := New(DefaultCapacity)
	id, _ := o.Subscribe()
	o.Unsubscribe(id)
	o.Unsubscribe(id) // must not panic
}

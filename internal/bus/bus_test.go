package bus

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Folken2/ag-ui-research/internal/log"
)

func newTestBus(capacity int) *Bus {
	return New(capacity, log.NewNop())
}

func TestEmitDrain_PreservesOrder(t *testing.T) {
	b := newTestBus(0)

	for i := range 5 {
		b.Emit(StreamEvent{Type: KindToolStarted, Data: map[string]any{"i": i}})
	}

	events := b.Drain()
	if len(events) != 5 {
		t.Fatalf("Drain() returned %d events, want 5", len(events))
	}
	for i, e := range events {
		if got := e.Data["i"]; got != i {
			t.Errorf("events[%d].Data[i] = %v, want %d", i, got, i)
		}
		if i > 0 && events[i-1].Seq >= e.Seq {
			t.Errorf("sequence numbers not monotonic: %d then %d", events[i-1].Seq, e.Seq)
		}
	}
}

func TestDrain_EmptyAfterDrain(t *testing.T) {
	b := newTestBus(0)
	b.Emit(StreamEvent{Type: KindAgentStarted})

	if got := len(b.Drain()); got != 1 {
		t.Fatalf("first Drain() = %d events, want 1", got)
	}
	if got := b.Drain(); got != nil {
		t.Errorf("second Drain() = %v, want nil (no re-delivery)", got)
	}
	if got := b.Drain(); got != nil {
		t.Errorf("third Drain() = %v, want nil", got)
	}
}

func TestReset_DiscardsQueuedEvents(t *testing.T) {
	b := newTestBus(0)
	before := b.SessionID()

	b.Emit(StreamEvent{Type: KindToolStarted})
	b.Emit(StreamEvent{Type: KindToolCompleted})
	b.Reset()

	if got := b.Drain(); got != nil {
		t.Errorf("Drain() after Reset() = %v, want nil (stale epoch events must never deliver)", got)
	}
	if after := b.SessionID(); after == before {
		t.Errorf("SessionID unchanged after Reset(): %s", after)
	}
}

func TestEmit_StampsEpoch(t *testing.T) {
	b := newTestBus(0)
	b.Emit(StreamEvent{Type: KindAgentStarted})

	events := b.Drain()
	if len(events) != 1 {
		t.Fatalf("Drain() = %d events, want 1", len(events))
	}
	if events[0].SessionID != b.SessionID() {
		t.Errorf("event SessionID = %s, want current epoch %s", events[0].SessionID, b.SessionID())
	}
	if events[0].Timestamp == "" {
		t.Error("event Timestamp is empty")
	}
}

func TestEmit_BoundedDropsOldest(t *testing.T) {
	b := newTestBus(3)

	for i := range 5 {
		b.Emit(StreamEvent{Type: KindToolStarted, Data: map[string]any{"i": i}})
	}

	events := b.Drain()
	if len(events) != 3 {
		t.Fatalf("Drain() = %d events, want capacity 3", len(events))
	}
	// Oldest two (0, 1) dropped; newest three survive.
	for i, want := range []int{2, 3, 4} {
		if got := events[i].Data["i"]; got != want {
			t.Errorf("events[%d].Data[i] = %v, want %d", i, got, want)
		}
	}
}

type opaque struct{ n int }

type stringish struct{}

func (stringish) String() string { return "stringish" }

func TestEmit_SanitizesData(t *testing.T) {
	b := newTestBus(0)
	b.Emit(StreamEvent{
		Type: KindToolError,
		Data: map[string]any{
			"text":   "plain",
			"count":  3,
			"ok":     true,
			"none":   nil,
			"err":    errors.New("boom"),
			"obj":    opaque{n: 7},
			"str":    stringish{},
			"nested": map[string]any{"inner": opaque{n: 1}},
			"list":   []any{1, "two", opaque{n: 2}},
		},
	})

	events := b.Drain()
	if len(events) != 1 {
		t.Fatalf("Drain() = %d events, want 1", len(events))
	}
	data := events[0].Data

	if data["text"] != "plain" || data["count"] != 3 || data["ok"] != true || data["none"] != nil {
		t.Errorf("primitive values modified: %v", data)
	}
	if got, want := data["err"], "boom"; got != want {
		t.Errorf("error value = %v, want %q", got, want)
	}
	if _, ok := data["obj"].(string); !ok {
		t.Errorf("opaque struct not coerced to string: %T", data["obj"])
	}
	if got := data["str"]; got != "stringish" {
		t.Errorf("Stringer value = %v, want stringish", got)
	}
	nested, ok := data["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested value is %T, want map", data["nested"])
	}
	if _, ok := nested["inner"].(string); !ok {
		t.Errorf("nested opaque not coerced to string: %T", nested["inner"])
	}
	list, ok := data["list"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("list value = %v", data["list"])
	}
	if _, ok := list[2].(string); !ok {
		t.Errorf("list opaque not coerced to string: %T", list[2])
	}
}

func TestBus_ConcurrentEmitDrain(t *testing.T) {
	b := newTestBus(0)
	const producers = 4
	const perProducer = 50

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				b.Emit(StreamEvent{
					Type: KindToolStarted,
					Data: map[string]any{"id": fmt.Sprintf("%d-%d", p, i)},
				})
			}
		}()
	}

	done := make(chan struct{})
	seen := make(map[string]bool)
	go func() {
		defer close(done)
		for {
			for _, e := range b.Drain() {
				id := e.Data["id"].(string)
				if seen[id] {
					t.Errorf("event %s delivered twice", id)
				}
				seen[id] = true
			}
			if len(seen) == producers*perProducer {
				return
			}
		}
	}()

	wg.Wait()
	<-done

	if len(seen) != producers*perProducer {
		t.Errorf("delivered %d events, want %d", len(seen), producers*perProducer)
	}
}

func TestStatus(t *testing.T) {
	b := newTestBus(0)
	b.Emit(StreamEvent{Type: KindAgentStarted})
	b.Emit(StreamEvent{Type: KindAgentFinished})

	st := b.Status()
	if st.EventsPending != 2 {
		t.Errorf("Status().EventsPending = %d, want 2", st.EventsPending)
	}
	if st.SessionID != b.SessionID() {
		t.Errorf("Status().SessionID = %s, want %s", st.SessionID, b.SessionID())
	}

	b.Drain()
	if got := b.Status().EventsPending; got != 0 {
		t.Errorf("Status().EventsPending after drain = %d, want 0", got)
	}
}

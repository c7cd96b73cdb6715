package sim

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
)

// recordingHandler appends every event it receives, in delivery order.
type recordingHandler struct {
	id  peer.NodeID
	got []driver.Event
	at  []time.Duration
	d   *Driver
}

func (h *recordingHandler) Handle(ev driver.Event) error {
	h.got = append(h.got, ev)
	h.at = append(h.at, h.d.Now())
	return nil
}

func TestScheduleOrdersByTimeThenSeq(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, 0)
	h := &recordingHandler{id: 0, d: d}
	d.Register(0, h)

	d.Schedule(0, 10*time.Millisecond, driver.Event{Kind: driver.KindGenTx})
	d.Schedule(0, 5*time.Millisecond, driver.Event{Kind: driver.KindPow})
	d.Schedule(0, 5*time.Millisecond, driver.Event{Kind: driver.KindTTimer})

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}

	want := []driver.Kind{driver.KindPow, driver.KindTTimer, driver.KindGenTx}
	if len(h.got) != len(want) {
		t.Fatalf("got %d events, want %d", len(h.got), len(want))
	}
	for i, k := range want {
		if h.got[i].Kind != k {
			t.Fatalf("event %d: got %s, want %s", i, h.got[i].Kind, k)
		}
	}
	if h.at[0] != 5*time.Millisecond || h.at[2] != 10*time.Millisecond {
		t.Fatalf("unexpected delivery times: %v", h.at)
	}
}

func TestCancelPreventsDelivery(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, 0)
	h := &recordingHandler{id: 0, d: d}
	d.Register(0, h)

	handle := d.Schedule(0, time.Second, driver.Event{Kind: driver.KindPow})
	d.Cancel(handle)
	d.Schedule(0, 2*time.Second, driver.Event{Kind: driver.KindTTimer})

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(h.got) != 1 || h.got[0].Kind != driver.KindTTimer {
		t.Fatalf("got %v, want only T_timer to have fired", h.got)
	}
}

func TestBroadcastSkipsSenderAndReachesEveryoneElse(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, 0)
	h0 := &recordingHandler{id: 0, d: d}
	h1 := &recordingHandler{id: 1, d: d}
	h2 := &recordingHandler{id: 2, d: d}
	d.Register(0, h0)
	d.Register(1, h1)
	d.Register(2, h2)

	d.Send(driver.KindACBlock, "block", 0, -1, true)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if len(h0.got) != 0 {
		t.Fatal("sender should not receive its own broadcast")
	}
	if len(h1.got) != 1 || len(h2.got) != 1 {
		t.Fatalf("want both peers to receive the broadcast, got h1=%d h2=%d", len(h1.got), len(h2.got))
	}
}

func TestImmediateBroadcastHasNoDelay(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 500*time.Millisecond, 0)
	h1 := &recordingHandler{id: 1, d: d}
	d.Register(0, &recordingHandler{id: 0, d: d})
	d.Register(1, h1)

	d.Send(driver.KindACBlock, "block", 0, -1, true)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(h1.at) != 1 || h1.at[0] != 0 {
		t.Fatalf("immediate broadcast delivered at %v, want t=0", h1.at)
	}
}

func TestDelayedDeliveryRespectsNetworkDelta(t *testing.T) {
	delta := 500 * time.Millisecond
	d := New(rand.New(rand.NewSource(1)), delta, 0)
	h1 := &recordingHandler{id: 1, d: d}
	d.Register(0, &recordingHandler{id: 0, d: d})
	d.Register(1, h1)

	d.Send(driver.KindBatch, "batch", 0, -1, false)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(h1.at) != 1 || h1.at[0] < 0 || h1.at[0] > delta {
		t.Fatalf("delayed delivery at %v outside [0, %v]", h1.at, delta)
	}
}

func TestUnicastReachesOnlyTarget(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, 0)
	h0 := &recordingHandler{id: 0, d: d}
	h1 := &recordingHandler{id: 1, d: d}
	d.Register(0, h0)
	d.Register(1, h1)

	d.Send(driver.KindReceipt, "receipt", 0, 1, false)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(h1.got) != 1 {
		t.Fatalf("target got %d events, want 1", len(h1.got))
	}
	if len(h0.got) != 0 {
		t.Fatal("non-target should not have received the unicast")
	}
}

type failingHandler struct{}

func (failingHandler) Handle(driver.Event) error { return errors.New("boom") }

func TestRunStopsOnHandlerError(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, 0)
	d.Register(0, failingHandler{})
	d.Schedule(0, 0, driver.Event{Kind: driver.KindPow})

	if err := d.Run(); err == nil {
		t.Fatal("Run: want error from failing handler, got nil")
	}
}

func TestRunStopsAtSimDuration(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)), 0, time.Second)
	h := &recordingHandler{id: 0, d: d}
	d.Register(0, h)

	d.Schedule(0, 500*time.Millisecond, driver.Event{Kind: driver.KindPow})
	d.Schedule(0, 2*time.Second, driver.Event{Kind: driver.KindTTimer})

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(h.got) != 1 || h.got[0].Kind != driver.KindPow {
		t.Fatalf("got %v, want only the event before SimDuration", h.got)
	}
}

package metrics_test

import (
	"testing"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
)

func TestRecordCountsByKind(t *testing.T) {
	r := metrics.New()
	r.Record(metrics.KindDoubleSpent)
	r.Record(metrics.KindDoubleSpent)
	r.Record(metrics.KindWrongOwner)

	stats := r.Stats()
	if stats[metrics.KindDoubleSpent] != 2 {
		t.Fatalf("got %d double_spent, exp 2", stats[metrics.KindDoubleSpent])
	}
	if stats[metrics.KindWrongOwner] != 1 {
		t.Fatalf("got %d wrong_owner, exp 1", stats[metrics.KindWrongOwner])
	}
}

func TestMeanCCPT(t *testing.T) {
	r := metrics.New()
	if r.MeanCCPT() != 0 {
		t.Fatalf("expected 0 mean with no samples")
	}

	r.RecordCCPT(10)
	r.RecordCCPT(20)
	if got := r.MeanCCPT(); got != 15 {
		t.Fatalf("got mean %v, exp 15", got)
	}
}

func TestStorageBytesAccumulates(t *testing.T) {
	r := metrics.New()
	r.AddStorageBytes(100, 50)
	r.AddStorageBytes(20, 5)

	ac, cc := r.StorageBytes()
	if ac != 120 || cc != 55 {
		t.Fatalf("got ac=%d cc=%d", ac, cc)
	}
}

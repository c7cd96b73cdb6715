package peer_test

import (
	"testing"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
)

func TestSetCopyExcludesSelf(t *testing.T) {
	s := peer.NewSet()
	s.Add(0)
	s.Add(1)
	s.Add(2)

	got := s.Copy(1)
	if len(got) != 2 {
		t.Fatalf("got %d peers, exp 2", len(got))
	}
	for _, id := range got {
		if id == 1 {
			t.Fatalf("Copy included self")
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	id := peer.NodeID(7)

	got, err := peer.ParseName(peer.Name(id))
	if err != nil {
		t.Fatalf("ParseName: %s", err)
	}
	if got != id {
		t.Fatalf("got %d, exp %d", got, id)
	}
}

func TestParseNameRejectsGarbage(t *testing.T) {
	if _, err := peer.ParseName("not-a-node"); err == nil {
		t.Fatalf("expected error for a malformed name")
	}
}

func TestCommitteeEnrollAndReset(t *testing.T) {
	c := peer.NewCommittee()
	c.Enroll(3)
	c.Enroll(5)

	if !c.IsMember(3) || !c.IsMember(5) {
		t.Fatalf("expected both members enrolled")
	}
	if c.Size() != 2 {
		t.Fatalf("got size %d, exp 2", c.Size())
	}

	c.Reset()
	if c.Size() != 0 {
		t.Fatalf("expected committee to be empty after reset")
	}
}

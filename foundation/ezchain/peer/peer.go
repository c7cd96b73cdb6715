// Package peer maintains the set of nodes known to a simulator node and
// the committee membership tracked for the current epoch.
package peer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NodeID identifies a participating node. The reference driver assigns
// these 0..N-1.
type NodeID int

// Name returns the wire-level identity string for id — what appears as
// a Tx owner/recipient, an ACBlock miner, or a CCBlock miner, since
// those entities are serialised independently of any particular
// driver's in-memory node table.
func Name(id NodeID) string {
	return fmt.Sprintf("node-%d", id)
}

// ParseName recovers the NodeID encoded by Name.
func ParseName(s string) (NodeID, error) {
	n, ok := strings.CutPrefix(s, "node-")
	if !ok {
		return 0, fmt.Errorf("peer: %q is not a node name", s)
	}
	id, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("peer: %q is not a node name: %s", s, err)
	}
	return NodeID(id), nil
}

// Set represents a collection of known peer node ids, mirroring the
// teacher's PeerSet but keyed on the integer node ids the discrete-event
// driver uses instead of host strings.
type Set struct {
	mu  sync.RWMutex
	ids map[NodeID]struct{}
}

// NewSet constructs an empty peer set.
func NewSet() *Set {
	return &Set{ids: make(map[NodeID]struct{})}
}

// Add adds a node id to the set, reporting whether it was newly added.
func (s *Set) Add(id NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; exists {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove removes a node id from the set.
func (s *Set) Remove(id NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ids, id)
}

// Has reports whether id is a member of the set.
func (s *Set) Has(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[id]
	return ok
}

// Copy returns every known id except self.
func (s *Set) Copy(self NodeID) []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []NodeID
	for id := range s.ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// Len reports the number of members.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ids)
}

// =============================================================================

// Committee tracks the nodes enrolled as committee members for the
// current epoch (spec §4.2: "Mining any AC-block enrols the miner as a
// committee member for the current epoch").
type Committee struct {
	mu      sync.RWMutex
	members map[NodeID]struct{}
}

// NewCommittee constructs an empty committee.
func NewCommittee() *Committee {
	return &Committee{members: make(map[NodeID]struct{})}
}

// Enroll adds id as a committee member.
func (c *Committee) Enroll(id NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.members[id] = struct{}{}
}

// IsMember reports whether id is currently enrolled.
func (c *Committee) IsMember(id NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.members[id]
	return ok
}

// Members returns every enrolled node id.
func (c *Committee) Members() []NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]NodeID, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	return out
}

// Size reports the number of enrolled members.
func (c *Committee) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.members)
}

// Reset clears the committee at the start of a new epoch.
func (c *Committee) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.members = make(map[NodeID]struct{})
}

// Package driver defines the contracts spec §6 assigns to the simulator's
// external collaborators: the discrete-event driver, the broadcast
// transport, and the persistent cache. None of them are implemented
// here — node and consensus only depend on these interfaces, so the
// reference implementation in package sim can be swapped for another
// driver (or a real network) without touching protocol logic.
package driver

import (
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
)

// Kind enumerates the event kinds a node's handler can receive
// (spec §6).
type Kind string

// The complete event-kind enumeration from spec §6.
const (
	KindGenTx     Kind = "gen_tx"
	KindPow       Kind = "pow"
	KindACBlock   Kind = "ac_block"
	KindBatch     Kind = "batch"
	KindReceipt   Kind = "receipt"
	KindTTimer    Kind = "T_timer"
	KindGamma1    Kind = "gamma_1"
	KindGamma2    Kind = "gamma_2"
	KindGamma3    Kind = "gamma_3"
	KindGamma4    Kind = "gamma_4"
	KindCC1       Kind = "cc_1"
	KindCC2       Kind = "cc_2"
	KindCC3       Kind = "cc_3"
	KindCC4       Kind = "cc_4"
	KindCC5       Kind = "cc_5"
	KindSignature Kind = "signature"

	// KindAppeal carries appeal evidence during APPEAL_WINDOW (spec
	// §4.4/§1(c)): a node vouching for one of its own transactions that a
	// provisional CC-block candidate marked failed. Not part of spec §6's
	// literal event-kind list, which predates the appeal mechanic having
	// a concrete wire form.
	KindAppeal Kind = "appeal"
)

// Event is the message delivered to a node's handler. Payload's
// concrete type is determined by Kind; node and consensus type-assert
// it to the shape they expect.
type Event struct {
	Kind    Kind
	From    peer.NodeID
	Payload any
}

// TimerHandle identifies a single pending timer so it can be cancelled.
type TimerHandle uint64

// Scheduler is the event-driver collaborator (spec §6: "schedule(node, t,
// msg), cancel(msg), now()"). Delays are durations relative to Now().
type Scheduler interface {
	Now() time.Duration
	Schedule(node peer.NodeID, delay time.Duration, ev Event) TimerHandle
	Cancel(h TimerHandle)
}

// Broadcaster is the network collaborator (spec §6: "send(msg, from,
// to=-1)"). to == -1 means every node but from; a non-negative to is a
// unicast. immediate, when true, models the zero-delay AC-block
// broadcast of spec §5; otherwise delivery happens after an independent
// Uniform(0, δ) delay per recipient.
type Broadcaster interface {
	Send(kind Kind, payload any, from peer.NodeID, to int, immediate bool)
}

// PersistentMap is the generic external cache collaborator (spec §6):
// "used only as an external cache for serialized Tx, Proof, Batch, and
// personal-chain entries — the core must function identically if it is
// in-memory."
type PersistentMap interface {
	Get(key string) (string, bool)
	Put(key string, value string)
	Delete(key string)
}

// MemoryMap is the default in-memory PersistentMap, sufficient on its
// own per the collaborator's contract.
type MemoryMap struct {
	m map[string]string
}

// NewMemoryMap constructs an empty in-memory map.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{m: make(map[string]string)}
}

// Get returns the value stored for key.
func (m *MemoryMap) Get(key string) (string, bool) {
	v, ok := m.m[key]
	return v, ok
}

// Put stores value under key.
func (m *MemoryMap) Put(key string, value string) {
	m.m[key] = value
}

// Delete removes key.
func (m *MemoryMap) Delete(key string) {
	delete(m.m, key)
}

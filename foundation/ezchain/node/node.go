// Package node implements the per-node state machine of spec §4.2-§4.3:
// transaction generation, AC-block mining and observation, batch pool
// participation, proof maintenance, and the entry point into the CC
// consensus engine. It consumes the driver.Event enumeration and never
// blocks — every wait is expressed as an armed timer, per spec §5.
package node

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/consensus"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/genesis"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/hashing"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/mempool"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/value"
)

// EventHandler is called for every traced protocol event a node
// produces, mirroring the teacher's state.EventHandler.
type EventHandler func(v string, args ...any)

// Config bundles a node's collaborators and tunables.
type Config struct {
	ID        peer.NodeID
	Params    genesis.Parameters
	Sched     driver.Scheduler
	Bcast     driver.Broadcaster
	Pool      *mempool.Pool // shared across all nodes, per spec §4.5
	Metrics   *metrics.Recorder
	Peers     *peer.Set
	Rand      *rand.Rand
	EvHandler EventHandler
}

// Node is one participant in the simulated EZchain network.
type Node struct {
	id      peer.NodeID
	name    string
	params  genesis.Parameters
	sched   driver.Scheduler
	bcast   driver.Broadcaster
	pool    *mempool.Pool
	metrics *metrics.Recorder
	peers   *peer.Set
	rnd     *rand.Rand
	evHandler EventHandler

	acChain *acchain.Chain
	ccChain *ccchain.Chain

	values map[string]value.Value
	proofs map[string]value.Proof

	pendingTxs     []txn.WithProof
	personalChain  []txn.Batch
	lastSeenHeight uint64
	pHigh          uint64

	signer    hashing.ECDSASigner
	threshold hashing.ThresholdSigner

	committee        *peer.Committee
	epoch            uint64
	epochLeader      string
	blockEpoch       uint64
	epochStartHeight uint64
	minedThisEpoch   bool
	powTimer         driver.TimerHandle

	engine *consensus.Engine
}

// New constructs a node with no values yet; call SeedValues to populate
// its initial holdings.
func New(cfg Config) (*Node, error) {
	evh := cfg.EvHandler
	if evh == nil {
		evh = func(string, ...any) {}
	}

	signer, err := hashing.GenerateECDSASigner()
	if err != nil {
		return nil, fmt.Errorf("node %s: generating signer: %w", peer.Name(cfg.ID), err)
	}

	n := &Node{
		id:        cfg.ID,
		name:      peer.Name(cfg.ID),
		params:    cfg.Params,
		sched:     cfg.Sched,
		bcast:     cfg.Bcast,
		pool:      cfg.Pool,
		metrics:   cfg.Metrics,
		peers:     cfg.Peers,
		rnd:       cfg.Rand,
		evHandler: evh,
		acChain:   acchain.New(),
		ccChain:   ccchain.New(),
		values:    make(map[string]value.Value),
		proofs:    make(map[string]value.Proof),
		committee: peer.NewCommittee(),
		signer:    signer,
		threshold: hashing.NaiveThreshold{Verifier: signer},
	}

	n.engine = consensus.NewEngine(n, cfg.Params.Gamma1, cfg.Params.Gamma2, cfg.Params.Gamma3, cfg.Params.Gamma4)
	return n, nil
}

// ID returns the node's identity.
func (n *Node) ID() peer.NodeID { return n.id }

// Name returns the node's wire-level identity string.
func (n *Node) Name() string { return n.name }

// SeedValues creates count values owned by this node, anchored at
// height (normally 0, genesis).
func (n *Node) SeedValues(count int, height uint64) {
	for i := 0; i < count; i++ {
		v := value.New(n.name, height)
		n.values[v.ValueID] = v
		n.proofs[v.ValueID] = value.NewProof(v)
	}
}

// HoldsValue reports whether this node currently believes it owns
// valueID.
func (n *Node) HoldsValue(valueID string) bool {
	_, ok := n.values[valueID]
	return ok
}

// ValueIDs returns every value id this node currently holds.
func (n *Node) ValueIDs() []string {
	out := make([]string, 0, len(n.values))
	for id := range n.values {
		out = append(out, id)
	}
	return out
}

// Proof returns the proof held for valueID, if any.
func (n *Node) Proof(valueID string) (value.Proof, bool) {
	p, ok := n.proofs[valueID]
	return p, ok
}

// Metrics exposes the node's error/performance recorder.
func (n *Node) Metrics() *metrics.Recorder { return n.metrics }

// Handle dispatches one event to the appropriate handler. A handler
// runs to completion without suspending, per spec §5.
func (n *Node) Handle(ev driver.Event) error {
	switch ev.Kind {
	case driver.KindGenTx:
		return n.handleGenTx()
	case driver.KindPow:
		return n.handlePow()
	case driver.KindACBlock:
		return n.handleACBlock(ev)
	case driver.KindBatch:
		return n.handleBatch(ev)
	case driver.KindReceipt:
		return n.handleReceipt(ev)
	case driver.KindTTimer:
		return n.handleTTimer()
	case driver.KindGamma1, driver.KindGamma2, driver.KindGamma3, driver.KindGamma4,
		driver.KindCC1, driver.KindCC2, driver.KindCC3, driver.KindCC4, driver.KindCC5,
		driver.KindSignature, driver.KindAppeal:
		return n.engine.Handle(ev)
	default:
		return fmt.Errorf("node %s: unknown event kind %q", n.name, ev.Kind)
	}
}

// =============================================================================
// consensus.Host implementation — the small callback surface the CC
// engine uses instead of importing node directly (spec §9's
// "Node::getLeader ... reified into an explicit state enum", kept
// decoupled the way the teacher's worker package is driven by an
// interface implemented in state rather than importing it).

// NodeName implements consensus.Host.
func (n *Node) NodeName() string { return n.name }

// Now implements consensus.Host.
func (n *Node) Now() time.Duration { return n.sched.Now() }

// Schedule implements consensus.Host.
func (n *Node) Schedule(delay time.Duration, ev driver.Event) driver.TimerHandle {
	ev.From = n.id
	return n.sched.Schedule(n.id, delay, ev)
}

// Cancel implements consensus.Host.
func (n *Node) Cancel(h driver.TimerHandle) { n.sched.Cancel(h) }

// Broadcast implements consensus.Host.
func (n *Node) Broadcast(kind driver.Kind, payload any) {
	n.bcast.Send(kind, payload, n.id, -1, false)
}

// Unicast implements consensus.Host.
func (n *Node) Unicast(kind driver.Kind, payload any, to peer.NodeID) {
	n.bcast.Send(kind, payload, n.id, int(to), false)
}

// ACChain implements consensus.Host.
func (n *Node) ACChain() *acchain.Chain { return n.acChain }

// CCTop implements consensus.Host.
func (n *Node) CCTop() uint64 { return n.ccChain.Top() }

// CCHeadID implements consensus.Host.
func (n *Node) CCHeadID() string { return n.ccChain.Head().ID }

// Epoch implements consensus.Host.
func (n *Node) Epoch() uint64 { return n.epoch }

// AppendCCBlock implements consensus.Host.
func (n *Node) AppendCCBlock(b ccchain.Block) error {
	if err := n.ccChain.Append(b); err != nil {
		return err
	}
	n.metrics.AddStorageBytes(0, len(b.Encode()))
	n.pruneProofs(b.ACBHeight)
	return nil
}

// LocalBatchEntries implements consensus.Host: the digest-indexed
// (tx, proof) content of batches this node authored and sealed at or
// after epochStartHeight — reported during COLLECTING so every other
// committee member can independently re-verify it, and consulted again
// during APPEAL_WINDOW to find this node's own appealable transactions.
func (n *Node) LocalBatchEntries(epochStartHeight uint64) map[string][]txn.WithProof {
	out := make(map[string][]txn.WithProof)
	for _, b := range n.personalChain {
		if b.Height >= epochStartHeight {
			out[b.Digest] = b.Entries
		}
	}
	return out
}

// VerifyProof implements consensus.Host: re-derives the Proof from its
// wire form and walks it against this node's own chain view, the same
// check a receipt recipient runs (spec §4.1).
func (n *Node) VerifyProof(proof string, spender string) error {
	p, err := value.Decode(proof)
	if err != nil {
		return err
	}
	return p.Verify(n, spender)
}

// RecordError implements consensus.Host.
func (n *Node) RecordError(kind metrics.Kind) { n.metrics.Record(kind) }

// RecordCCPT implements consensus.Host.
func (n *Node) RecordCCPT(nanos int64) { n.metrics.RecordCCPT(nanos) }

// SignerAddress implements consensus.Host: the address this node signs
// CC consensus messages with, carried alongside each message so peers
// can resolve who signed it (spec §4.4's quorum certificate).
func (n *Node) SignerAddress() string { return n.signer.Address() }

// Sign implements consensus.Host.
func (n *Node) Sign(v any) (hashing.Signature, error) { return n.signer.Sign(v) }

// VerifyQuorum implements consensus.Host: whether sigs constitutes a
// valid quorum certificate over v for committee.
func (n *Node) VerifyQuorum(v any, sigs map[string]hashing.Signature, committee []string) bool {
	return n.threshold.Verify(v, sigs, committee)
}

func (n *Node) pruneProofs(acbHeight uint64) {
	for id, p := range n.proofs {
		if err := p.AfterCC(acbHeight); err != nil {
			n.metrics.Record(metrics.KindAfterCCInvariant)
			continue
		}
		n.proofs[id] = p
	}
}

// =============================================================================

func (n *Node) log(v string, args ...any) { n.evHandler(v, args...) }

// expDelay draws an exponential inter-arrival time with the given mean.
func expDelay(rnd *rand.Rand, mean time.Duration) time.Duration {
	if mean <= 0 {
		return 0
	}
	u := rnd.Float64()
	for u == 0 {
		u = rnd.Float64()
	}
	return time.Duration(-math.Log(u) * float64(mean))
}

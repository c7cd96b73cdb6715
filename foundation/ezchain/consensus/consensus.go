// Package consensus implements the CC-Chain committee consensus engine
// of spec §4.4: a four-phase round (collect, propose, appeal, finalize)
// run once per epoch by whichever nodes mined at least one AC-block
// during it. The engine never imports package node; it is driven
// entirely through the Host interface a node implements, the same way
// the teacher's worker package is driven by callbacks into state rather
// than importing it directly.
package consensus

import (
	"fmt"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/hashing"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
)

// Host is the callback surface the engine needs from its owning node.
type Host interface {
	NodeName() string
	Now() time.Duration
	Schedule(delay time.Duration, ev driver.Event) driver.TimerHandle
	Cancel(h driver.TimerHandle)
	Broadcast(kind driver.Kind, payload any)
	Unicast(kind driver.Kind, payload any, to peer.NodeID)
	ACChain() *acchain.Chain
	CCTop() uint64
	CCHeadID() string
	Epoch() uint64
	AppendCCBlock(b ccchain.Block) error
	LocalBatchEntries(epochStartHeight uint64) map[string][]txn.WithProof
	RecordError(kind metrics.Kind)
	RecordCCPT(nanos int64)
	SignerAddress() string
	Sign(v any) (hashing.Signature, error)
	VerifyQuorum(v any, sigs map[string]hashing.Signature, committee []string) bool
	// VerifyProof independently re-derives and walks the proof attached
	// to a reported transaction, checking it resolves to spender (spec
	// §4.1). Used both to flag individual failing transactions in
	// computeFailSet and to re-verify appeal evidence in APPEAL_WINDOW.
	VerifyProof(proof string, spender string) error
}

// Phase is one state of the four-phase CC round (spec §4.4).
type Phase int

// The CC round's phases.
const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseProposing
	PhaseAwaitProposal
	PhaseSigning
	PhaseAppealWindow
	PhaseFinalSigning
	PhaseAwaitFinal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseProposing:
		return "proposing"
	case PhaseAwaitProposal:
		return "await_proposal"
	case PhaseSigning:
		return "signing"
	case PhaseAppealWindow:
		return "appeal_window"
	case PhaseFinalSigning:
		return "final_signing"
	case PhaseAwaitFinal:
		return "await_final"
	default:
		return "unknown"
	}
}

// cc1Msg is a committee member's self-report of the batches it authored
// this epoch, each carrying its full (tx, proof) content rather than
// just a digest, so every other committee member can independently
// re-verify it (original_source's `broadcastInf`/`collectInf`) instead
// of trusting the reporting node's own say-so.
type cc1Msg struct {
	Name    string
	Address string
	Entries map[string][]txn.WithProof // batch digest -> its entries
}

// appealMsg carries one piece of appeal evidence: a node vouching that
// txID, reported failed within digest's batch, is in fact backed by a
// valid proof (spec §4.4's appeal window).
type appealMsg struct {
	Digest string
	TxID   string
	Owner  string
	Proof  string
}

// proposalMsg carries the leader's candidate CC-block (cc_2 and cc_4,
// distinguished by Round).
type proposalMsg struct {
	Round      int
	Block      ccchain.Block
	LeaderName string
	LeaderAddr string
	LeaderSig  hashing.Signature
}

// sigMsg is a committee member's vote over the current round's
// candidate, unicast back to the leader.
type sigMsg struct {
	Round   int
	Address string
	Sig     hashing.Signature
}

// finalizeMsg carries the quorum-certified candidate (cc_3 and cc_5).
type finalizeMsg struct {
	Round int
	Block ccchain.Block
	Sigs  map[string]hashing.Signature
}

// Engine runs one node's view of the CC consensus round.
type Engine struct {
	host Host

	phase Phase
	skip  int

	blockEpoch uint64
	epochStart uint64
	epochTop   uint64
	committee  []peer.NodeID

	leader   string
	beginAt  time.Duration
	addrBook map[string]string // node name -> signer address

	received     map[string][]string        // node name -> reported digests, this round
	batchEntries map[string][]txn.WithProof // digest -> reported (tx, proof) entries, this round

	candidate ccchain.Block
	sigs      map[string]hashing.Signature

	gammaHandle driver.TimerHandle

	gamma1, gamma2, gamma3, gamma4 time.Duration
}

// NewEngine constructs an idle engine bound to host, with the CC
// round's four phase timeouts.
func NewEngine(host Host, gamma1, gamma2, gamma3, gamma4 time.Duration) *Engine {
	return &Engine{
		host:     host,
		phase:    PhaseIdle,
		addrBook: make(map[string]string),
		gamma1:   gamma1,
		gamma2:   gamma2,
		gamma3:   gamma3,
		gamma4:   gamma4,
	}
}

// Phase reports the engine's current state, for tests and the viewer.
func (e *Engine) Phase() Phase { return e.phase }

// Begin starts a CC round for the epoch that just ended. leader is the
// host's own observation of the epoch's first-seen AC-block miner;
// committee is the snapshot of everyone who mined during the epoch.
func (e *Engine) Begin(leader string, blockEpoch, epochStart, epochTop uint64, committee []peer.NodeID) error {
	e.skip = 0
	e.blockEpoch = blockEpoch
	e.epochStart = epochStart
	e.epochTop = epochTop
	e.committee = committee
	e.beginAt = e.host.Now()
	e.received = make(map[string][]string)
	e.batchEntries = make(map[string][]txn.WithProof)
	e.sigs = make(map[string]hashing.Signature)

	resolved, err := e.getLeader(0)
	if err != nil {
		return err
	}
	e.leader = resolved
	if e.leader != leader {
		e.leader = leader // host's own direct observation is authoritative if they disagree
	}

	e.phase = PhaseCollecting
	entries := e.host.LocalBatchEntries(epochStart)
	e.host.Broadcast(driver.KindCC1, cc1Msg{Name: e.host.NodeName(), Address: e.host.SignerAddress(), Entries: entries})
	e.recordReport(e.host.NodeName(), entries)
	e.addrBook[e.host.NodeName()] = e.host.SignerAddress()

	e.gammaHandle = e.host.Schedule(e.gamma1, driver.Event{Kind: driver.KindGamma1})
	return nil
}

// getLeader walks back (block_epoch - 1 - skip) AC-blocks from the
// epoch's top height and returns the miner there (spec §4.4). Running
// off the start of the epoch, or before any block was mined, is the
// fatal ACC_HEIGHT condition.
func (e *Engine) getLeader(skip int) (string, error) {
	if e.blockEpoch == 0 {
		return "", fmt.Errorf("ac_height_walk_error: getLeader: block_epoch is 0")
	}

	offset := int64(e.blockEpoch) - 1 - int64(skip)
	if offset < 0 {
		return "", fmt.Errorf("ac_height_walk_error: getLeader(skip=%d) underran block_epoch=%d", skip, e.blockEpoch)
	}

	height := e.epochTop - uint64(offset)
	if height <= e.epochStart {
		return "", fmt.Errorf("ac_height_walk_error: getLeader(skip=%d) walked before epoch start %d", skip, e.epochStart)
	}

	block, ok := e.host.ACChain().At(height)
	if !ok {
		return "", fmt.Errorf("ac_height_walk_error: getLeader(skip=%d): no ac-block at height %d", skip, height)
	}
	return block.Miner, nil
}

// Handle dispatches one CC-phase event.
func (e *Engine) Handle(ev driver.Event) error {
	switch ev.Kind {
	case driver.KindCC1:
		return e.handleCC1(ev)
	case driver.KindGamma1:
		return e.handleGamma1()
	case driver.KindCC2:
		return e.handleProposal(ev)
	case driver.KindGamma2:
		return e.handleGamma2()
	case driver.KindSignature:
		return e.handleSignature(ev)
	case driver.KindCC3:
		return e.handleFinalize(ev, 0)
	case driver.KindGamma3:
		return e.handleGamma3()
	case driver.KindCC4:
		return e.handleProposal(ev)
	case driver.KindGamma4:
		return e.handleGamma4()
	case driver.KindCC5:
		return e.handleFinalize(ev, 1)
	case driver.KindAppeal:
		return e.handleAppeal(ev)
	default:
		return fmt.Errorf("consensus: unexpected event kind %q", ev.Kind)
	}
}

func (e *Engine) handleCC1(ev driver.Event) error {
	if e.phase != PhaseCollecting {
		return nil
	}
	msg, ok := ev.Payload.(cc1Msg)
	if !ok {
		return fmt.Errorf("consensus: cc_1: unexpected payload type %T", ev.Payload)
	}
	e.recordReport(msg.Name, msg.Entries)
	e.addrBook[msg.Name] = msg.Address
	return nil
}

// recordReport folds one node's cc_1 report into the round's digest
// union (used to flag wholly-missing batches) and its merged pool of
// reported batch content (used to independently re-verify each batch's
// individual transactions).
func (e *Engine) recordReport(name string, entries map[string][]txn.WithProof) {
	digests := make([]string, 0, len(entries))
	for digest, list := range entries {
		digests = append(digests, digest)
		e.batchEntries[digest] = list
	}
	e.received[name] = digests
}

// handleGamma1 ends the collection phase and moves to proposing: every
// node independently computes the fail_set, but only the epoch's leader
// broadcasts a candidate.
func (e *Engine) handleGamma1() error {
	if e.phase != PhaseCollecting {
		return nil
	}
	e.phase = PhaseProposing

	failSet, failTxn, err := e.computeFailSet()
	if err != nil {
		return err
	}

	if e.host.NodeName() != e.leader {
		e.phase = PhaseAwaitProposal
		e.gammaHandle = e.host.Schedule(e.gamma2, driver.Event{Kind: driver.KindGamma2})
		return nil
	}

	e.candidate = e.buildCandidate(failSet, failTxn, 0)
	return e.proposeAsLeader(0)
}

// computeFailSet flags any batch digest present on the AC-chain within
// this epoch's range but never reported in a cc_1 submission, per spec
// §4.4's "any digest on-chain but not received in any cc_1 is flagged".
// A digest that was reported is still checked transaction-by-transaction
// against its reported (tx, proof) content; any transaction that fails
// independent re-verification is flagged in fail_txn rather than the
// whole batch (spec §4.1(d), §4.4's appeal window precondition).
func (e *Engine) computeFailSet() (map[string]int, [][]string, error) {
	union := make(map[string]struct{})
	for _, digests := range e.received {
		for _, d := range digests {
			union[d] = struct{}{}
		}
	}

	failSet := make(map[string]int)
	var failTxn [][]string
	err := e.host.ACChain().Range(e.epochStart+1, e.epochTop, func(b acchain.Block) error {
		for _, d := range b.AVec {
			if _, ok := union[d]; !ok {
				failSet[d] = ccchain.MissingOrInvalid
				continue
			}
			if bad := e.failingTxIDs(d); len(bad) > 0 {
				failSet[d] = len(failTxn)
				failTxn = append(failTxn, bad)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return failSet, failTxn, nil
}

// failingTxIDs independently re-verifies every (tx, proof) entry
// reported for digest and returns the ids of those whose proof does not
// resolve to its claimed owner.
func (e *Engine) failingTxIDs(digest string) []string {
	var bad []string
	for _, wp := range e.batchEntries[digest] {
		if err := e.host.VerifyProof(wp.Proof, wp.Tx.Owner); err != nil {
			bad = append(bad, wp.Tx.ID)
		}
	}
	return bad
}

// candidateSeed is hashed to derive a fresh CC-block id; it carries just
// enough to make ids unique per (prev, leader, epoch) triple.
type candidateSeed struct {
	Prev   string
	Leader string
	Epoch  uint64
	ACB    uint64
}

func (e *Engine) buildCandidate(failSet map[string]int, failTxn [][]string, round int) ccchain.Block {
	if round == 0 {
		seed := candidateSeed{Prev: e.host.CCHeadID(), Leader: e.leader, Epoch: e.host.Epoch(), ACB: e.epochTop}
		return ccchain.Block{
			Height:      e.host.CCTop() + 1,
			ID:          hashing.Hash(seed),
			PrevID:      e.host.CCHeadID(),
			Miner:       e.leader,
			ACBHeight:   e.epochTop,
			EpochBlocks: e.blockEpoch,
			Time:        uint64(e.host.Now()),
			TxnCount:    uint64(len(failSet)),
			FailSet:     failSet,
			FailTxn:     failTxn,
		}
	}
	// Round 1 re-signs the provisional candidate as-is: any appeal
	// evidence accepted during APPEAL_WINDOW already mutated
	// e.candidate's fail_set/fail_txn in place (handleAppeal), so there
	// is nothing further to recompute here.
	return e.candidate
}

func (e *Engine) proposeAsLeader(round int) error {
	sig, err := e.host.Sign(e.candidate)
	if err != nil {
		return fmt.Errorf("consensus: signing candidate: %w", err)
	}

	e.sigs = map[string]hashing.Signature{e.host.SignerAddress(): sig}

	if round == 0 {
		e.phase = PhaseSigning
		e.host.Broadcast(driver.KindCC2, proposalMsg{Round: 0, Block: e.candidate, LeaderName: e.leader, LeaderAddr: e.host.SignerAddress(), LeaderSig: sig})
		e.gammaHandle = e.host.Schedule(e.gamma2, driver.Event{Kind: driver.KindGamma2})
	} else {
		e.phase = PhaseFinalSigning
		e.host.Broadcast(driver.KindCC4, proposalMsg{Round: 1, Block: e.candidate, LeaderName: e.leader, LeaderAddr: e.host.SignerAddress(), LeaderSig: sig})
		e.gammaHandle = e.host.Schedule(e.gamma4, driver.Event{Kind: driver.KindGamma4})
	}
	return nil
}

// handleProposal handles both cc_2 (round 0) and cc_4 (round 1), since
// a follower's response to each is structurally identical: verify,
// adopt, sign, and unicast the vote back to the leader.
func (e *Engine) handleProposal(ev driver.Event) error {
	msg, ok := ev.Payload.(proposalMsg)
	if !ok {
		return fmt.Errorf("consensus: proposal: unexpected payload type %T", ev.Payload)
	}

	wantPhase := PhaseAwaitProposal
	if msg.Round == 1 {
		wantPhase = PhaseAwaitFinal
	}
	if e.phase != wantPhase {
		return nil
	}

	if msg.Round == 0 {
		failSet, failTxn, err := e.computeFailSet()
		if err != nil {
			return err
		}
		if !sameFailSet(failSet, msg.Block.FailSet) || !sameFailTxn(failTxn, msg.Block.FailTxn) {
			e.host.RecordError(metrics.KindCrossCC)
			return nil
		}
	}

	e.candidate = msg.Block
	e.host.Cancel(e.gammaHandle)

	sig, err := e.host.Sign(e.candidate)
	if err != nil {
		return fmt.Errorf("consensus: signing candidate: %w", err)
	}

	leaderID, err := peer.ParseName(e.leader)
	if err != nil {
		return fmt.Errorf("consensus: proposal: leader name %q: %w", e.leader, err)
	}
	e.host.Unicast(driver.KindSignature, sigMsg{Round: msg.Round, Address: e.host.SignerAddress(), Sig: sig}, leaderID)

	if msg.Round == 0 {
		e.phase = PhaseSigning
	} else {
		e.phase = PhaseFinalSigning
	}
	return nil
}

func sameFailSet(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// sameFailTxn reports whether a and b flag the same sets of failing
// transaction ids at each index, order within an entry aside.
func sameFailTxn(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		seen := make(map[string]struct{}, len(a[i]))
		for _, id := range a[i] {
			seen[id] = struct{}{}
		}
		for _, id := range b[i] {
			if _, ok := seen[id]; !ok {
				return false
			}
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// handleSignature accumulates votes for whichever round is active; only
// the leader collects these (followers unicast directly to it).
func (e *Engine) handleSignature(ev driver.Event) error {
	msg, ok := ev.Payload.(sigMsg)
	if !ok {
		return fmt.Errorf("consensus: signature: unexpected payload type %T", ev.Payload)
	}

	wantPhase := PhaseSigning
	if msg.Round == 1 {
		wantPhase = PhaseFinalSigning
	}
	if e.phase != wantPhase || e.host.NodeName() != e.leader {
		return nil
	}

	e.sigs[msg.Address] = msg.Sig

	if len(e.sigs) <= len(e.committee)/2 {
		return nil
	}

	if msg.Round == 0 {
		e.host.Cancel(e.gammaHandle)
		e.host.Broadcast(driver.KindCC3, finalizeMsg{Round: 0, Block: e.candidate, Sigs: cloneSigs(e.sigs)})
		e.phase = PhaseAppealWindow
		e.submitAppeals()
		e.gammaHandle = e.host.Schedule(e.gamma3, driver.Event{Kind: driver.KindGamma3})
		return nil
	}

	e.host.Cancel(e.gammaHandle)
	e.host.Broadcast(driver.KindCC5, finalizeMsg{Round: 1, Block: e.candidate, Sigs: cloneSigs(e.sigs)})
	return e.finalize(e.candidate)
}

func cloneSigs(in map[string]hashing.Signature) map[string]hashing.Signature {
	out := make(map[string]hashing.Signature, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// handleFinalize handles both cc_3 (round 0, the provisional quorum
// certificate) and cc_5 (round 1, the final one). round is passed
// explicitly since both wire kinds decode to the same finalizeMsg
// shape.
func (e *Engine) handleFinalize(ev driver.Event, round int) error {
	msg, ok := ev.Payload.(finalizeMsg)
	if !ok {
		return fmt.Errorf("consensus: finalize: unexpected payload type %T", ev.Payload)
	}

	if !e.host.VerifyQuorum(msg.Block, msg.Sigs, e.committeeAddresses()) {
		e.host.RecordError(metrics.KindCrossCC)
		return nil
	}
	if len(msg.Sigs) <= len(e.committee)/2 {
		e.host.RecordError(metrics.KindCrossCC)
		return nil
	}

	e.candidate = msg.Block

	if round == 0 {
		if e.phase == PhaseAppealWindow {
			return nil // we are the leader; already here via handleSignature
		}
		e.phase = PhaseAppealWindow
		e.submitAppeals()
		e.gammaHandle = e.host.Schedule(e.gamma3, driver.Event{Kind: driver.KindGamma3})
		return nil
	}

	return e.finalize(msg.Block)
}

func (e *Engine) finalize(block ccchain.Block) error {
	if err := e.host.AppendCCBlock(block); err != nil {
		return err
	}
	e.host.RecordCCPT(int64(e.host.Now() - e.beginAt))
	e.phase = PhaseIdle
	return nil
}

// handleGamma2 is the end of either the leader's signature-collection
// window (round 0) or a follower's proposal-wait window.
func (e *Engine) handleGamma2() error {
	switch e.phase {
	case PhaseSigning:
		if e.host.NodeName() != e.leader {
			return nil
		}
		// Not enough votes yet; give it one more window rather than
		// stalling the epoch forever.
		e.gammaHandle = e.host.Schedule(e.gamma2, driver.Event{Kind: driver.KindGamma2})
		return nil
	case PhaseAwaitProposal:
		return e.reelect(0)
	default:
		return nil
	}
}

// handleGamma3 ends the appeal window and moves to the final signing
// round. Any appeal evidence accepted during the window has already
// been applied in place to e.candidate by handleAppeal.
func (e *Engine) handleGamma3() error {
	if e.phase != PhaseAppealWindow {
		return nil
	}

	if e.host.NodeName() == e.leader {
		e.candidate = e.buildCandidate(e.candidate.FailSet, e.candidate.FailTxn, 1)
		return e.proposeAsLeader(1)
	}

	e.phase = PhaseAwaitFinal
	e.gammaHandle = e.host.Schedule(e.gamma4, driver.Event{Kind: driver.KindGamma4})
	return nil
}

// submitAppeals broadcasts appeal evidence for every transaction this
// node authored that the provisional candidate marked failed, per spec
// §4.4's "any node may submit appeal evidence for a transaction it
// authored that was marked fail".
func (e *Engine) submitAppeals() {
	for digest, entries := range e.batchEntries {
		idx, ok := e.candidate.FailSet[digest]
		if !ok || idx == ccchain.MissingOrInvalid || idx >= len(e.candidate.FailTxn) {
			continue
		}
		failed := e.candidate.FailTxn[idx]
		for _, wp := range entries {
			if wp.Tx.Owner != e.host.NodeName() || !containsString(failed, wp.Tx.ID) {
				continue
			}
			e.host.Broadcast(driver.KindAppeal, appealMsg{
				Digest: digest,
				TxID:   wp.Tx.ID,
				Owner:  wp.Tx.Owner,
				Proof:  wp.Proof,
			})
		}
	}
}

// handleAppeal re-verifies one piece of appeal evidence and, if the
// proof still checks out, removes the transaction from the provisional
// candidate's fail_txn (spec §4.4: "if the appellant wins, remove from
// fail_txn").
func (e *Engine) handleAppeal(ev driver.Event) error {
	if e.phase != PhaseAppealWindow {
		return nil
	}
	msg, ok := ev.Payload.(appealMsg)
	if !ok {
		return fmt.Errorf("consensus: appeal: unexpected payload type %T", ev.Payload)
	}

	idx, ok := e.candidate.FailSet[msg.Digest]
	if !ok || idx == ccchain.MissingOrInvalid || idx >= len(e.candidate.FailTxn) {
		return nil
	}

	pos := -1
	for i, id := range e.candidate.FailTxn[idx] {
		if id == msg.TxID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	if err := e.host.VerifyProof(msg.Proof, msg.Owner); err != nil {
		return nil
	}

	remaining := e.candidate.FailTxn[idx]
	e.candidate.FailTxn[idx] = append(remaining[:pos], remaining[pos+1:]...)
	if len(e.candidate.FailTxn[idx]) == 0 {
		delete(e.candidate.FailSet, msg.Digest)
	}
	return nil
}

func (e *Engine) handleGamma4() error {
	switch e.phase {
	case PhaseFinalSigning:
		if e.host.NodeName() != e.leader {
			return nil
		}
		e.gammaHandle = e.host.Schedule(e.gamma4, driver.Event{Kind: driver.KindGamma4})
		return nil
	case PhaseAwaitFinal:
		return e.reelect(1)
	default:
		return nil
	}
}

// reelect advances the leader skip counter and restarts the given round
// under the newly elected leader (spec §4.4, I5/I6: a non-responding
// leader is walked past via getLeader(skip+1), fatal if it underruns
// the epoch's own block count).
func (e *Engine) reelect(round int) error {
	e.skip++
	leader, err := e.getLeader(e.skip)
	if err != nil {
		return err
	}
	e.leader = leader

	if e.host.NodeName() != e.leader {
		e.phase = PhaseAwaitProposal
		if round == 1 {
			e.phase = PhaseAwaitFinal
		}
		delay := e.gamma2
		kind := driver.KindGamma2
		if round == 1 {
			delay = e.gamma4
			kind = driver.KindGamma4
		}
		e.gammaHandle = e.host.Schedule(delay, driver.Event{Kind: kind})
		return nil
	}

	failSet, failTxn := e.candidate.FailSet, e.candidate.FailTxn
	if round == 0 {
		var err error
		failSet, failTxn, err = e.computeFailSet()
		if err != nil {
			return err
		}
	}
	e.candidate = e.buildCandidate(failSet, failTxn, round)
	return e.proposeAsLeader(round)
}

func (e *Engine) committeeAddresses() []string {
	out := make([]string, 0, len(e.committee))
	for _, id := range e.committee {
		name := peer.Name(id)
		if addr, ok := e.addrBook[name]; ok {
			out = append(out, addr)
		}
	}
	return out
}

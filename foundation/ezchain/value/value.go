// Package value implements the Value and Proof entities of spec §3/§4.1:
// a value is a globally unique, singly-owned identifier, and a proof is
// the ordered chain of transaction-sets a holder must present to
// convince a recipient that a spend is valid.
package value

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/wire"
)

// Verification failure reasons, returned wrapped via errors.Is.
var (
	ErrIncomplete  = errors.New("PRF_INCOMPLETE")
	ErrDoubleSpent = errors.New("DOUBLE_SPENT")
	ErrNotSpend    = errors.New("NOT_SPEND")
	ErrWrongOwner  = errors.New("WRONG_OWNER")
	ErrInitHigh    = errors.New("INIT_HIGH")
	ErrAfterCC     = errors.New("AFTER_CC")
)

// Value is a globally unique, singly-owned identifier (spec §3).
type Value struct {
	InitOwner  string `json:"init_owner"`
	InitHeight uint64 `json:"init_height"`
	ValueID    string `json:"value_id"`
}

// New creates a value owned by owner, anchored at height.
func New(owner string, height uint64) Value {
	return Value{InitOwner: owner, InitHeight: height, ValueID: uuid.New().String()}
}

// Entry is one (txn_set, ac_height) link in a proof's chain: the full
// set of encoded transactions (txn.Tx.Encode()) of the owner's batch at
// that AC-block height (spec §4.1 P2 — "the full batch"), not merely the
// transactions touching this value, so the verifier can recompute the
// batch digest and locate it in the AC-block's A_vec.
type Entry struct {
	TxSet  []string
	Height uint64
}

// Proof accumulates the ordered transaction-sets required to verify the
// next spend of a value (spec §3, §4.1).
type Proof struct {
	InitOwner  string  `json:"init_owner"`
	InitHeight uint64  `json:"init_height"`
	ValueID    string  `json:"value_id"`
	Entries    []Entry `json:"entries"`
	TxCount    uint64  `json:"tx_count"`
}

// NewProof returns the proof for a value freshly created at init_owner /
// init_height, with no entries yet.
func NewProof(v Value) Proof {
	return Proof{InitOwner: v.InitOwner, InitHeight: v.InitHeight, ValueID: v.ValueID}
}

// LastHeight returns the height of the proof's last entry, or InitHeight
// if the proof has none yet.
func (p Proof) LastHeight() uint64 {
	if len(p.Entries) == 0 {
		return p.InitHeight
	}
	return p.Entries[len(p.Entries)-1].Height
}

// PersonalEntry is one record of a node's personal chain: the batch this
// node authored, sealed at height.
type PersonalEntry struct {
	Height uint64
	TxSet  []string
}

// AddTxs right-extends the proof with every personal-chain entry whose
// height is ≥ the proof's current last height (spec §4.1, P1/P2).
// Idempotent over repeated calls against the same prefix: entries below
// LastHeight() are skipped, and an entry whose height is already present
// (LastHeight() itself included) is not duplicated.
func (p *Proof) AddTxs(pbChain []PersonalEntry) {
	last := p.LastHeight()
	have := make(map[uint64]struct{}, len(p.Entries))
	for _, e := range p.Entries {
		have[e.Height] = struct{}{}
	}

	for _, pe := range pbChain {
		if pe.Height < last {
			continue
		}
		if _, ok := have[pe.Height]; ok {
			continue
		}
		p.Entries = append(p.Entries, Entry{TxSet: pe.TxSet, Height: pe.Height})
		have[pe.Height] = struct{}{}
	}
	p.recomputeTxCount()
}

// recomputeTxCount derives tx_count from the proof's current entries:
// the total number of transactions across every (txn_set, ac_height)
// link (spec §3's "a derived tx_count").
func (p *Proof) recomputeTxCount() {
	var count uint64
	for _, e := range p.Entries {
		count += uint64(len(e.TxSet))
	}
	p.TxCount = count
}

// AfterCC discards every entry whose height is strictly less than to,
// always retaining at least one anchor entry: the newest entry with
// height < to, or, failing that, the chain unchanged (spec §4.1, P4).
func (p *Proof) AfterCC(to uint64) error {
	if len(p.Entries) == 0 {
		return nil
	}

	anchor := -1
	for i, e := range p.Entries {
		if e.Height < to {
			anchor = i
		}
	}

	if anchor < 0 {
		// No entry precedes `to` — the whole chain is the anchor, per spec.
		return nil
	}

	kept := p.Entries[anchor:]
	if len(kept) == 0 {
		return fmt.Errorf("%w: afterCC(%d) discarded every entry", ErrAfterCC, to)
	}

	p.Entries = kept
	p.recomputeTxCount()
	return nil
}

// Ledger is the minimal, read-only view of chain state Verify needs:
// lookup of AC-blocks by height and the latest finalised CC-block.
type Ledger interface {
	ACBlockAt(height uint64) (acchain.Block, bool)
	ACAnyFilterContains(from, to uint64, owner string) (bool, error)
	LatestCCBlock() ccchain.Block
}

// Verify walks the proof, owner-run by owner-run, per spec §4.1(a)-(e).
// spender is the owner the walk must end at: starting from InitOwner,
// the owner moves to the recipient of each entry's spend, and the last
// owner reached must equal spender.
func (p Proof) Verify(ledger Ledger, spender string) error {
	cc := ledger.LatestCCBlock()
	// "unless the value is at its init anchor": the constraint is moot
	// until some CC-block has actually finalised, since acb_height is
	// only meaningful relative to a completed epoch (spec §4.1, §4.4
	// "a CC-block with no prior CC-block has ... height = 0").
	if cc.Height > 0 && len(p.Entries) > 0 && p.Entries[0].Height > cc.ACBHeight && p.Entries[0].Height != p.InitHeight {
		return fmt.Errorf("%w: first entry height %d exceeds latest cc acb_height %d", ErrInitHigh, p.Entries[0].Height, cc.ACBHeight)
	}

	owner := p.InitOwner
	prevHeight := p.InitHeight

	for _, entry := range p.Entries {
		block, ok := ledger.ACBlockAt(entry.Height)
		if !ok {
			return fmt.Errorf("%w: no ac-block at height %d", ErrIncomplete, entry.Height)
		}

		txs := make([]txn.Tx, len(entry.TxSet))
		for i, encoded := range entry.TxSet {
			tx, err := txn.Decode(encoded)
			if err != nil {
				return fmt.Errorf("%w: entry at height %d: %s", ErrIncomplete, entry.Height, err)
			}
			txs[i] = tx
		}

		digest := txn.DigestFromEncoded(entry.TxSet)
		if !containsDigest(block.AVec, digest) {
			return fmt.Errorf("%w: digest %s absent from ac-block %d's A_vec", ErrIncomplete, digest, entry.Height)
		}

		if entry.Height > prevHeight+1 {
			gap, err := ledger.ACAnyFilterContains(prevHeight+1, entry.Height-1, owner)
			if err != nil {
				return err
			}
			if gap {
				return fmt.Errorf("%w: owner %s mined an omitted batch between heights %d and %d", ErrIncomplete, owner, prevHeight+1, entry.Height-1)
			}
		}

		batchInvalid := false
		if idx, ok := cc.Verdict(digest); ok && idx == ccchain.MissingOrInvalid {
			batchInvalid = true
		}

		spends := 0
		nextOwner := owner
		if !batchInvalid {
			for _, tx := range txs {
				if tx.ValueID != p.ValueID {
					continue
				}
				if cc.IsFailedTx(digest, tx.ID) {
					continue
				}
				spends++
				nextOwner = tx.Recipient
			}
		}

		if spends > 1 {
			return fmt.Errorf("%w: value %s spent more than once at height %d", ErrDoubleSpent, p.ValueID, entry.Height)
		}
		if spends == 0 {
			return fmt.Errorf("%w: value %s has no valid spend at height %d", ErrNotSpend, p.ValueID, entry.Height)
		}

		owner = nextOwner
		prevHeight = entry.Height
	}

	if owner != spender {
		return fmt.Errorf("%w: proof resolves to owner %s, spender claims %s", ErrWrongOwner, owner, spender)
	}

	return nil
}

func containsDigest(aVec []string, digest string) bool {
	for _, d := range aVec {
		if d == digest {
			return true
		}
	}
	return false
}

// =============================================================================

// Encode returns the wire form of the proof.
func (p Proof) Encode() string {
	entryStrs := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		entryStrs[i] = wire.JoinProofEntry(e.TxSet, e.Height)
	}

	return wire.JoinBlock(
		p.InitOwner,
		strconv.FormatUint(p.InitHeight, 10),
		p.ValueID,
		wire.JoinGroup(entryStrs),
		strconv.FormatUint(p.TxCount, 10),
	)
}

// Decode parses a proof produced by Encode.
func Decode(s string) (Proof, error) {
	parts, err := wire.SplitBlock(s, 5)
	if err != nil {
		return Proof{}, err
	}

	initHeight, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: proof init_height: %s", wire.ErrMalformed, err)
	}

	entryStrs, err := wire.SplitGroup(parts[3])
	if err != nil {
		return Proof{}, err
	}
	entries := make([]Entry, len(entryStrs))
	for i, es := range entryStrs {
		txSet, height, err := wire.SplitProofEntry(es)
		if err != nil {
			return Proof{}, err
		}
		entries[i] = Entry{TxSet: txSet, Height: height}
	}

	txCount, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: proof tx_count: %s", wire.ErrMalformed, err)
	}

	return Proof{
		InitOwner:  parts[0],
		InitHeight: initHeight,
		ValueID:    parts[2],
		Entries:    entries,
		TxCount:    txCount,
	}, nil
}

// EntriesFromBatches derives the personal-chain entries Proof.AddTxs
// expects from a node's own sealed batches.
func EntriesFromBatches(batches []txn.Batch) []PersonalEntry {
	out := make([]PersonalEntry, len(batches))
	for i, b := range batches {
		encoded := make([]string, len(b.Entries))
		for j, e := range b.Entries {
			encoded[j] = e.Tx.Encode()
		}
		out[i] = PersonalEntry{Height: b.Height, TxSet: encoded}
	}
	return out
}

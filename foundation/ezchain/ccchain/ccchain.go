// Package ccchain implements the CC-Chain of spec §3/§4.4: an
// append-only log of CCBlocks, each the finalised output of one epoch's
// committee consensus round. Like acchain, blocks are stored in a
// height-indexed arena rather than linked by pointer.
package ccchain

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/wire"
)

// ZeroID is the prev_id of the chain's first block, which also has
// height 0 (spec §4.4 edge case: "a CC-block with no prior CC-block has
// prev_id = 0, height = 0").
const ZeroID = "0"

// MissingOrInvalid is the fail_set sentinel value meaning "the entire
// batch is declared invalid/missing", as opposed to a non-negative index
// into FailTxn naming the specific offending transactions.
const MissingOrInvalid = -1

// Block is one CC-block: (height, id, prev_id, miner, acb_height,
// epoch_blocks, time, txn_count, fail_set, fail_txn). fail_set maps a
// batch digest to either MissingOrInvalid or an index into FailTxn.
type Block struct {
	Height      uint64
	ID          string
	PrevID      string
	Miner       string
	ACBHeight   uint64
	EpochBlocks uint64
	Time        uint64
	TxnCount    uint64
	FailSet     map[string]int
	FailTxn     [][]string
}

// NewGenesis returns the chain's height-0 block, per the spec's edge
// case for "no prior CC-block".
func NewGenesis() Block {
	return Block{Height: 0, ID: ZeroID, PrevID: ZeroID}
}

// Encode returns the wire form of the block.
func (b Block) Encode() string {
	digests := make([]string, 0, len(b.FailSet))
	for d := range b.FailSet {
		digests = append(digests, d)
	}
	sort.Strings(digests)

	verdicts := make([]string, len(digests))
	for i, d := range digests {
		verdicts[i] = strconv.Itoa(b.FailSet[d])
	}

	failTxnGroups := make([]string, len(b.FailTxn))
	for i, txs := range b.FailTxn {
		failTxnGroups[i] = wire.JoinGroup(txs)
	}

	return wire.JoinBlock(
		strconv.FormatUint(b.Height, 10),
		b.ID,
		b.PrevID,
		b.Miner,
		strconv.FormatUint(b.ACBHeight, 10),
		strconv.FormatUint(b.EpochBlocks, 10),
		strconv.FormatUint(b.Time, 10),
		strconv.FormatUint(b.TxnCount, 10),
		wire.JoinGroup(digests),
		wire.JoinGroup(verdicts),
		wire.JoinGroup(failTxnGroups),
	)
}

// Decode parses a block produced by Encode.
func Decode(s string) (Block, error) {
	parts, err := wire.SplitBlock(s, 11)
	if err != nil {
		return Block{}, err
	}

	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: cc-block height: %s", wire.ErrMalformed, err)
	}
	acbHeight, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: cc-block acb_height: %s", wire.ErrMalformed, err)
	}
	epochBlocks, err := strconv.ParseUint(parts[5], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: cc-block epoch_blocks: %s", wire.ErrMalformed, err)
	}
	t, err := strconv.ParseUint(parts[6], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: cc-block time: %s", wire.ErrMalformed, err)
	}
	txnCount, err := strconv.ParseUint(parts[7], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: cc-block txn_count: %s", wire.ErrMalformed, err)
	}

	digests, err := wire.SplitGroup(parts[8])
	if err != nil {
		return Block{}, err
	}
	verdictStrs, err := wire.SplitGroup(parts[9])
	if err != nil {
		return Block{}, err
	}
	if len(verdictStrs) != len(digests) {
		return Block{}, fmt.Errorf("%w: cc-block fail_set has %d digests but %d verdicts", wire.ErrMalformed, len(digests), len(verdictStrs))
	}

	failSet := make(map[string]int, len(digests))
	for i, d := range digests {
		v, err := strconv.Atoi(verdictStrs[i])
		if err != nil {
			return Block{}, fmt.Errorf("%w: cc-block fail_set verdict: %s", wire.ErrMalformed, err)
		}
		failSet[d] = v
	}

	failTxnGroups, err := wire.SplitGroup(parts[10])
	if err != nil {
		return Block{}, err
	}
	failTxn := make([][]string, len(failTxnGroups))
	for i, g := range failTxnGroups {
		txs, err := wire.SplitGroup(g)
		if err != nil {
			return Block{}, err
		}
		failTxn[i] = txs
	}

	return Block{
		Height:      height,
		ID:          parts[1],
		PrevID:      parts[2],
		Miner:       parts[3],
		ACBHeight:   acbHeight,
		EpochBlocks: epochBlocks,
		Time:        t,
		TxnCount:    txnCount,
		FailSet:     failSet,
		FailTxn:     failTxn,
	}, nil
}

// Verdict reports the fail_set outcome for digest: ok is false if the
// digest is not present (the batch was not flagged at all).
func (b Block) Verdict(digest string) (idx int, ok bool) {
	idx, ok = b.FailSet[digest]
	return idx, ok
}

// IsFailedTx reports whether txID was enumerated as an invalid
// transaction within the batch named by digest, per spec §4.1(d).
func (b Block) IsFailedTx(digest, txID string) bool {
	idx, ok := b.FailSet[digest]
	if !ok || idx == MissingOrInvalid || idx < 0 || idx >= len(b.FailTxn) {
		return false
	}
	for _, id := range b.FailTxn[idx] {
		if id == txID {
			return true
		}
	}
	return false
}

// =============================================================================

// Chain is a node's local view of the CC-Chain, height-indexed starting
// at the genesis (height 0) block.
type Chain struct {
	blocks []Block
}

// New constructs a chain containing only the height-0 genesis block.
func New() *Chain {
	return &Chain{blocks: []Block{NewGenesis()}}
}

// Top returns the height of the most recently finalised block.
func (c *Chain) Top() uint64 {
	return c.blocks[len(c.blocks)-1].Height
}

// Head returns the most recently finalised block.
func (c *Chain) Head() Block {
	return c.blocks[len(c.blocks)-1]
}

// Append adds block to the chain. block.Height must equal Top()+1.
func (c *Chain) Append(block Block) error {
	want := c.Top() + 1
	if block.Height != want {
		return fmt.Errorf("cc_chain_underrun: append at height %d, want %d", block.Height, want)
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// At returns the block at height (0-indexed, 0 is genesis).
func (c *Chain) At(height uint64) (Block, bool) {
	if height >= uint64(len(c.blocks)) {
		return Block{}, false
	}
	return c.blocks[height], true
}

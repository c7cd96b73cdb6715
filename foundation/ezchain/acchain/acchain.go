// Package acchain implements the AC-Chain of spec §3/§4.2: an
// append-only, per-node log of ACBlocks that timestamp each round's
// batches. A block never references another block by pointer — heights
// are looked up by arena index (spec §9's "raw back/forward pointers ...
// map to arena+index"), which sidesteps the ownership cycles the
// original prev/next scheme required.
package acchain

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/wire"
)

// ZeroID is the prev_id of the chain's first block.
const ZeroID = "0"

// Block is one AC-block: (height, id, prev_id, miner, time, filter,
// A_vec). filter is the set of distinct batch authors represented in
// A_vec, kept for the "gap" check in proof verification (spec §4.1(c)).
// A_vec is an ordered list of batch digests, never the batches
// themselves — acchain has no dependency on package txn.
type Block struct {
	Height uint64
	ID     string
	PrevID string
	Miner  string
	Time   uint64
	Filter map[string]struct{}
	AVec   []string
}

// NewBlock constructs a block at height, linked to prev (the chain's
// current head), with the given miner, sim-time, and batch digests. The
// filter is derived from the authors supplied alongside each digest.
func NewBlock(height uint64, id, prevID, miner string, t uint64, authors, digests []string) Block {
	filter := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		filter[a] = struct{}{}
	}

	return Block{
		Height: height,
		ID:     id,
		PrevID: prevID,
		Miner:  miner,
		Time:   t,
		Filter: filter,
		AVec:   digests,
	}
}

// HasMiner reports whether miner authored at least one batch present in
// this block's A_vec.
func (b Block) HasMiner(miner string) bool {
	_, ok := b.Filter[miner]
	return ok
}

// Encode returns the wire form of the block.
func (b Block) Encode() string {
	filterItems := make([]string, 0, len(b.Filter))
	for m := range b.Filter {
		filterItems = append(filterItems, m)
	}
	sort.Strings(filterItems)

	return wire.JoinBlock(
		strconv.FormatUint(b.Height, 10),
		b.ID,
		b.PrevID,
		b.Miner,
		strconv.FormatUint(b.Time, 10),
		wire.JoinGroup(filterItems),
		wire.JoinGroup(b.AVec),
	)
}

// Decode parses a block produced by Encode.
func Decode(s string) (Block, error) {
	parts, err := wire.SplitBlock(s, 7)
	if err != nil {
		return Block{}, err
	}

	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: ac-block height: %s", wire.ErrMalformed, err)
	}

	t, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return Block{}, fmt.Errorf("%w: ac-block time: %s", wire.ErrMalformed, err)
	}

	filterItems, err := wire.SplitGroup(parts[5])
	if err != nil {
		return Block{}, err
	}
	filter := make(map[string]struct{}, len(filterItems))
	for _, m := range filterItems {
		filter[m] = struct{}{}
	}

	aVec, err := wire.SplitGroup(parts[6])
	if err != nil {
		return Block{}, err
	}

	return Block{
		Height: height,
		ID:     parts[1],
		PrevID: parts[2],
		Miner:  parts[3],
		Time:   t,
		Filter: filter,
		AVec:   aVec,
	}, nil
}

// =============================================================================

// Chain is a node's local view of the AC-Chain: an arena of blocks
// indexed by height, heights 1..Top(). Safe for concurrent use.
type Chain struct {
	mu     sync.RWMutex
	blocks []Block // blocks[0] is height 1
}

// New constructs an empty chain.
func New() *Chain {
	return &Chain{}
}

// Top returns the height of the most recently appended block, or 0 if
// the chain is empty.
func (c *Chain) Top() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks))
}

// HeadID returns the id of the block at Top(), or ZeroID if the chain is
// empty.
func (c *Chain) HeadID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return ZeroID
	}
	return c.blocks[len(c.blocks)-1].ID
}

// Append adds block to the chain. block.Height must equal Top()+1.
func (c *Chain) Append(block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := uint64(len(c.blocks)) + 1
	if block.Height != want {
		return fmt.Errorf("ac_chain_underrun: append at height %d, want %d", block.Height, want)
	}

	c.blocks = append(c.blocks, block)
	return nil
}

// At returns the block at height (1-indexed). The bool is false if
// height is out of range.
func (c *Chain) At(height uint64) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if height == 0 || height > uint64(len(c.blocks)) {
		return Block{}, false
	}
	return c.blocks[height-1], true
}

// Range calls fn for every block with height in [from, to], inclusive.
// Returns an error without calling fn further if any height in the
// range is missing.
func (c *Chain) Range(from, to uint64, fn func(Block) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for h := from; h <= to; h++ {
		if h == 0 || h > uint64(len(c.blocks)) {
			return fmt.Errorf("ac_height_walk_error: height %d not present (top=%d)", h, len(c.blocks))
		}
		if err := fn(c.blocks[h-1]); err != nil {
			return err
		}
	}
	return nil
}

// AnyFilterContains reports whether any block with height in [from, to]
// has miner in its filter set — the "gap" check of spec §4.1(c).
func (c *Chain) AnyFilterContains(from, to uint64, miner string) (bool, error) {
	found := false
	err := c.Range(from, to, func(b Block) error {
		if b.HasMiner(miner) {
			found = true
		}
		return nil
	})
	return found, err
}

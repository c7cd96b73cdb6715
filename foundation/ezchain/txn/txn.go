// Package txn implements the Tx and Batch (INF) entities of spec §3: a
// transaction moves one value between owners, and a batch is a node's
// bundle of (tx, proof) pairs for one round, named by the hash of its
// transactions alone.
package txn

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/hashing"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/wire"
)

// Tx is a single transfer of value_id from owner to recipient. ACHeight
// is encoded with the transaction (and so hashed into its batch's
// digest); New leaves it zero and sealing a batch does not update it.
type Tx struct {
	ID        string `json:"id"`
	ValueID   string `json:"value_id"`
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	ACHeight  uint64 `json:"acb_height"`
}

// New constructs a Tx with a freshly generated id.
func New(valueID, owner, recipient string) Tx {
	return Tx{
		ID:        uuid.New().String(),
		ValueID:   valueID,
		Owner:     owner,
		Recipient: recipient,
	}
}

// Encode returns the wire form of the transaction's core fields. This is
// what batch digests hash over — it never includes a proof, matching
// §3's "the hash is over the transaction bytes only, excluding proofs".
func (t Tx) Encode() string {
	return wire.JoinFields(t.ID, t.ValueID, t.Owner, t.Recipient, strconv.FormatUint(t.ACHeight, 10))
}

// Valid reports whether every field a transaction must carry is
// populated (spec §7's tx_format fault class).
func (t Tx) Valid() bool {
	return t.ID != "" && t.ValueID != "" && t.Owner != "" && t.Recipient != ""
}

// Decode parses a Tx from its wire form.
func Decode(s string) (Tx, error) {
	fields := wire.SplitFields(s)
	if len(fields) != 5 {
		return Tx{}, fmt.Errorf("%w: tx %q has %d fields, want 5", wire.ErrMalformed, s, len(fields))
	}

	height, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Tx{}, fmt.Errorf("%w: tx height: %s", wire.ErrMalformed, err)
	}

	return Tx{
		ID:        fields[0],
		ValueID:   fields[1],
		Owner:     fields[2],
		Recipient: fields[3],
		ACHeight:  height,
	}, nil
}

// =============================================================================

// WithProof pairs a transaction with the serialised proof string the
// sender attaches for transmission (§3: Tx "plus a serialised
// proof-string attached for transmission").
type WithProof struct {
	Tx    Tx     `json:"tx"`
	Proof string `json:"proof"`
}

// Encode returns the wire form of a (tx, proof) pair: a proof-carrying
// entry is a block ($) of the tx's own record and the raw proof string,
// so an embedded proof (itself delimiter-structured) never collides
// with the enclosing batch's own record/group delimiters.
func (wp WithProof) Encode() string {
	return wire.JoinBlock(wp.Tx.Encode(), wp.Proof)
}

// DecodeWithProof parses a (tx, proof) pair produced by Encode.
func DecodeWithProof(s string) (WithProof, error) {
	parts, err := wire.SplitBlock(s, 2)
	if err != nil {
		return WithProof{}, err
	}

	tx, err := Decode(parts[0])
	if err != nil {
		return WithProof{}, err
	}

	return WithProof{Tx: tx, Proof: parts[1]}, nil
}

// =============================================================================

// Batch (INF) is a node's bundle of (tx, proof) pairs for one round,
// named by the hash of its transactions. Height is zero until the batch
// has been sealed into an AC-block.
type Batch struct {
	Author  string      `json:"author"`
	Height  uint64      `json:"height"`
	Digest  string      `json:"digest"`
	Entries []WithProof `json:"entries"`
}

// NewBatch constructs a Batch from author and entries, computing the
// digest over the transaction bytes alone.
func NewBatch(author string, entries []WithProof) Batch {
	return Batch{
		Author:  author,
		Digest:  Digest(entries),
		Entries: entries,
	}
}

// Digest computes the content hash of a set of (tx, proof) entries: the
// hash of the concatenation of each entry's transaction bytes, excluding
// proofs (§3, I3).
func Digest(entries []WithProof) string {
	encoded := make([]string, len(entries))
	for i, e := range entries {
		encoded[i] = e.Tx.Encode()
	}
	return DigestFromEncoded(encoded)
}

// DigestFromEncoded computes the same digest as Digest directly from a
// list of already-encoded transactions, in order — the form a value's
// proof entry carries, letting the verifier recompute the batch digest
// without reconstructing the whole Batch.
func DigestFromEncoded(encodedTxs []string) string {
	var buf []byte
	for _, s := range encodedTxs {
		buf = append(buf, []byte(s)...)
	}
	return hashing.HashBytes(buf)
}

// Txs returns the plain transactions carried by the batch, in order.
func (b Batch) Txs() []Tx {
	txs := make([]Tx, len(b.Entries))
	for i, e := range b.Entries {
		txs[i] = e.Tx
	}
	return txs
}

// Encode returns the wire form of the batch.
func (b Batch) Encode() string {
	encoded := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		encoded[i] = e.Encode()
	}

	return wire.JoinBlock(
		b.Author,
		strconv.FormatUint(b.Height, 10),
		b.Digest,
		wire.JoinGroup(encoded),
	)
}

// DecodeBatch parses a Batch produced by Encode.
func DecodeBatch(s string) (Batch, error) {
	parts, err := wire.SplitBlock(s, 4)
	if err != nil {
		return Batch{}, err
	}

	height, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: batch height: %s", wire.ErrMalformed, err)
	}

	encodedEntries, err := wire.SplitGroup(parts[3])
	if err != nil {
		return Batch{}, err
	}

	entries := make([]WithProof, len(encodedEntries))
	for i, e := range encodedEntries {
		wp, err := DecodeWithProof(e)
		if err != nil {
			return Batch{}, err
		}
		entries[i] = wp
	}

	return Batch{
		Author:  parts[0],
		Height:  height,
		Digest:  parts[2],
		Entries: entries,
	}, nil
}

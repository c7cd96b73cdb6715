package node

import (
	"fmt"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/value"
)

// Start arms this node's first gen_tx, pow, and T_timer timers. Call
// once per node after SeedValues.
func (n *Node) Start() {
	n.armGenTx()
	n.armPow()
	n.armTTimer()
}

func (n *Node) armGenTx() {
	delay := expDelay(n.rnd, n.params.TxInterval())
	n.sched.Schedule(n.id, delay, driver.Event{Kind: driver.KindGenTx, From: n.id})
}

func (n *Node) armPow() {
	delay := expDelay(n.rnd, n.params.PowInterval())
	n.powTimer = n.sched.Schedule(n.id, delay, driver.Event{Kind: driver.KindPow, From: n.id})
}

func (n *Node) armTTimer() {
	n.sched.Schedule(n.id, n.params.EpochDuration(), driver.Event{Kind: driver.KindTTimer, From: n.id})
}

// handleGenTx mints a transaction over a randomly chosen held value and
// immediately flushes it as a one-transaction batch (spec §4.5: a batch
// is "created when a node flushes its pending-tx pool").
func (n *Node) handleGenTx() error {
	defer n.armGenTx()

	ids := n.ValueIDs()
	if len(ids) == 0 {
		n.log("node: %s: gen_tx: no held values, skipping", n.name)
		return nil
	}

	valueID := ids[n.rnd.Intn(len(ids))]
	recipient := n.randomRecipient()
	if recipient == "" {
		return nil
	}

	proof := n.proofs[valueID]
	tx := txn.New(valueID, n.name, recipient)

	wp := txn.WithProof{Tx: tx, Proof: proof.Encode()}
	n.log("node: %s: gen_tx: tx[%s] value[%s] -> %s", n.name, tx.ID, valueID, recipient)

	batch := txn.NewBatch(n.name, []txn.WithProof{wp})
	n.pool.Upsert(batch)
	n.bcast.Send(driver.KindBatch, batch.Encode(), n.id, -1, false)

	return nil
}

func (n *Node) randomRecipient() string {
	others := n.peers.Copy(n.id)
	if len(others) == 0 {
		return ""
	}
	return peer.Name(others[n.rnd.Intn(len(others))])
}

// handlePow attempts to mint an AC-block, per spec §4.2.
func (n *Node) handlePow() error {
	if n.lastSeenHeight != n.pHigh {
		// An AC-block arrived since this timer was armed; our
		// cancel-on-observe path should normally pre-empt this, but
		// resync defensively rather than mint a stale height.
		n.pHigh = n.lastSeenHeight
		n.armPow()
		return nil
	}

	height := n.pHigh + 1
	// Drain the whole pool rather than Snapshot it: a batch that fails
	// verification here would fail identically for every future miner,
	// so it must be discarded now instead of sitting in the shared pool
	// to be re-flagged (and re-counted) on every subsequent pow timer.
	candidates := n.pool.DrainAll()

	var authors []string
	var digests []string
	accepted := make([]txn.Batch, 0, len(candidates))
	for _, b := range candidates {
		if !n.batchVerifies(b) {
			n.metrics.Record(metrics.KindBatchDigestMismatch)
			continue
		}
		authors = append(authors, b.Author)
		digests = append(digests, b.Digest)
		accepted = append(accepted, b)
	}
	// Re-queue the verified batches so processSealedBatches (below, and
	// every other node's handleACBlock) can still look them up by digest
	// and delete them once their author has processed the seal.
	for _, b := range accepted {
		n.pool.Upsert(b)
	}

	id := fmt.Sprintf("acb-%s-%d", n.name, height)
	block := acchain.NewBlock(height, id, n.acChain.HeadID(), n.name, uint64(n.sched.Now()), authors, digests)

	n.log("node: %s: pow: MINING: height[%d] batches[%d]", n.name, height, len(accepted))

	if err := n.appendACBlock(block, true); err != nil {
		return err
	}
	n.minedThisEpoch = true

	// Broadcast before generating receipts: a receipt unicast ahead of
	// the block it cites would reach its recipient referencing a height
	// that node hasn't observed yet.
	n.bcast.Send(driver.KindACBlock, block.Encode(), n.id, -1, true)
	n.metrics.AddStorageBytes(len(block.Encode()), 0)
	n.processSealedBatches(block)

	n.pHigh = n.lastSeenHeight
	n.armPow()
	return nil
}

// batchVerifies recomputes a batch's digest and checks it is non-empty,
// every embedded transaction is well-formed, and every embedded proof
// is at least structurally decodable (spec §4.2, §7's empty_batch and
// tx_format fault classes).
func (n *Node) batchVerifies(b txn.Batch) bool {
	if len(b.Entries) == 0 {
		n.metrics.Record(metrics.KindEmptyBatch)
		return false
	}
	if txn.Digest(b.Entries) != b.Digest {
		return false
	}
	for _, e := range b.Entries {
		if !e.Tx.Valid() {
			n.metrics.Record(metrics.KindTxFormat)
			return false
		}
		if _, err := value.Decode(e.Proof); err != nil {
			return false
		}
	}
	return true
}

// handleACBlock observes a block broadcast by another node. A malformed
// or undecodable payload is a fault class like any other (spec §7), not
// the fatal ac_chain_underrun condition appendACBlock can still raise.
func (n *Node) handleACBlock(ev driver.Event) error {
	encoded, ok := ev.Payload.(string)
	if !ok {
		n.metrics.Record(metrics.KindBatchDigestMismatch)
		return nil
	}

	block, err := acchain.Decode(encoded)
	if err != nil {
		n.metrics.Record(metrics.KindBatchDigestMismatch)
		return nil
	}

	if err := n.appendACBlock(block, false); err != nil {
		return err
	}
	n.processSealedBatches(block)
	return nil
}

// appendACBlock is the shared path for both self-mined and
// externally-received AC-blocks (spec §4.2: "Upon observing any
// AC-block (own or others')..."). An error here is the fatal
// ac_chain_underrun case (spec §7) and should halt this node's process.
// It does NOT generate receipts — callers run processSealedBatches
// themselves, after the block has been (or is about to be) broadcast.
func (n *Node) appendACBlock(block acchain.Block, bySelf bool) error {
	if err := n.acChain.Append(block); err != nil {
		return fmt.Errorf("node %s: ac_block: %w", n.name, err)
	}

	n.lastSeenHeight = n.acChain.Top()

	if !bySelf {
		if n.powTimer != 0 {
			n.sched.Cancel(n.powTimer)
		}
		n.pHigh = n.lastSeenHeight
		n.armPow()
	}

	n.updateLeaderBookkeeping(block)
	return nil
}

func (n *Node) updateLeaderBookkeeping(block acchain.Block) {
	minerID, err := peer.ParseName(block.Miner)
	if err == nil {
		n.committee.Enroll(minerID)
	}

	if n.epochLeader == "" {
		n.epochLeader = block.Miner
		n.blockEpoch = 1
		return
	}
	n.blockEpoch++
}

func (n *Node) processSealedBatches(block acchain.Block) {
	for _, digest := range block.AVec {
		batch, ok := n.pool.Get(digest)
		if !ok || batch.Author != n.name {
			continue
		}

		batch.Height = block.Height
		n.personalChain = append(n.personalChain, batch)

		encodedFull := make([]string, len(batch.Entries))
		for i, e := range batch.Entries {
			encodedFull[i] = e.Tx.Encode()
		}

		for txIndex, e := range batch.Entries {
			n.sendReceipt(block, batch, txIndex, e, encodedFull)
			// The owner side is destroyed once its spending batch is
			// sealed (spec §3); the recipient's own handleReceipt is what
			// (re)establishes ownership on the other end.
			delete(n.values, e.Tx.ValueID)
			delete(n.proofs, e.Tx.ValueID)
		}

		n.pool.Delete(digest)
	}
}

func (n *Node) sendReceipt(block acchain.Block, batch txn.Batch, txIndex int, e txn.WithProof, fullBatch []string) {
	p, err := value.Decode(e.Proof)
	if err != nil {
		n.metrics.Record(metrics.KindProofFormat)
		return
	}

	p.AddTxs([]value.PersonalEntry{{Height: block.Height, TxSet: fullBatch}})

	r := Receipt{
		Sender:        e.Tx.Owner,
		Recipient:     e.Tx.Recipient,
		ACHeight:      block.Height,
		TxIndex:       uint64(txIndex),
		Tx:            e.Tx,
		Proof:         p.Encode(),
		FullBatchTxns: fullBatch,
	}

	recipientID, err := peer.ParseName(e.Tx.Recipient)
	if err != nil {
		n.metrics.Record(metrics.KindRecipientMismatch)
		return
	}

	n.log("node: %s: ac_block: receipt: tx[%s] -> %s", n.name, e.Tx.ID, e.Tx.Recipient)
	n.bcast.Send(driver.KindReceipt, r.Encode(), n.id, int(recipientID), false)
}

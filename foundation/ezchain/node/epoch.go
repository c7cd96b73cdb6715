package node

// handleTTimer fires at the fixed epoch boundary. If this node minted at
// least one AC-block during the ending epoch, it hands the snapshot of
// that epoch's accumulated leader/committee state to the CC consensus
// engine, per spec §4.4. Nodes that did not mine this epoch sit the CC
// round out, per spec §4.4's committee-membership precondition.
func (n *Node) handleTTimer() error {
	defer n.armTTimer()

	epochTop := n.acChain.Top()
	epochStart := n.epochStartHeight
	leader := n.epochLeader
	blockEpoch := n.blockEpoch
	committee := n.committee.Members()
	mined := n.minedThisEpoch

	n.epochStartHeight = epochTop
	n.epochLeader = ""
	n.blockEpoch = 0
	n.minedThisEpoch = false
	n.committee.Reset()
	n.epoch++

	if !n.params.EnableCC {
		return nil
	}
	if !mined {
		n.log("node: %s: T_timer: sat out epoch %d: did not mine", n.name, n.epoch)
		return nil
	}
	if leader == "" {
		return nil
	}

	n.log("node: %s: T_timer: beginning CC round for epoch %d: leader[%s] top[%d]", n.name, n.epoch, leader, epochTop)
	return n.engine.Begin(leader, blockEpoch, epochStart, epochTop, committee)
}

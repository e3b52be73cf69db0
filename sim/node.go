//----------------------------------------------------------------------
// This file is part of agra-routing.
// Copyright (C) 2026 the agra-routing authors
//
// agra-routing is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// agra-routing is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package sim

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"agra/core"
)

//----------------------------------------------------------------------

// SimNode is a node in the test network: a router bound to the
// simulated ether. It implements the host-stack and mobility contracts
// the router consumes.
type SimNode struct {
	*core.Router
	net      *Network
	id       core.NodeID
	pos      core.Position
	r2       float64       // square of broadcast reach
	traffIn  atomic.Uint64 // bytes received
	traffOut atomic.Uint64 // bytes sent
}

// newSimNode creates a node at a fixed position; it is registered with
// the network by AddNode.
func newSimNode(net *Network, id core.NodeID, pos core.Position, r2 float64, cfg *core.Config) *SimNode {
	n := &SimNode{
		net: net,
		id:  id,
		pos: pos,
		r2:  r2,
	}
	n.Router = core.NewRouter(id, cfg, net.clk, n, net, n)
	return n
}

// Start the node
func (n *SimNode) Start(ctx context.Context, cb core.Listener) {
	n.Router.Start(ctx, cb)
}

// ID returns the node address.
func (n *SimNode) ID() core.NodeID {
	return n.id
}

// Pos returns the node position.
func (n *SimNode) Pos() core.Position {
	return n.pos
}

// CanReach returns true if the node can reach another node by
// broadcast (ignoring obstacles).
func (n *SimNode) CanReach(peer *SimNode) bool {
	return n.pos.Distance2(peer.pos) < n.r2
}

// Traffic returns the number of bytes received and sent.
func (n *SimNode) Traffic() (in, out uint64) {
	return n.traffIn.Load(), n.traffOut.Load()
}

//----------------------------------------------------------------------
// core.Mobility
//----------------------------------------------------------------------

// SelfPosition reports the current node position to the router.
func (n *SimNode) SelfPosition() core.Position {
	return n.pos
}

//----------------------------------------------------------------------
// core.Host: the binding to the simulated ether
//----------------------------------------------------------------------

// UnicastForward transmits a data packet to the given neighbor.
func (n *SimNode) UnicastForward(pkt *core.Packet, hdr *core.DataHeader, next core.NodeID) {
	raw := append(hdr.Encode(), encodePacket(pkt)...)
	n.traffOut.Add(uint64(len(raw)))
	n.net.transmit(&ethFrame{from: n.id, to: next, raw: raw})
}

// LocalDeliver hands a packet terminating at this node to the
// scoreboard.
func (n *SimNode) LocalDeliver(pkt *core.Packet, hdr *core.DataHeader) {
	n.net.tracer.OnDeliver(pkt)
}

// Error reports a terminated packet.
func (n *SimNode) Error(pkt *core.Packet, hdr *core.DataHeader, reason core.DropReason) {
	n.net.tracer.OnDrop(pkt, reason)
}

// Broadcast emits a beacon into the ether.
func (n *SimNode) Broadcast(raw []byte) {
	n.traffOut.Add(uint64(len(raw)))
	n.net.transmit(&ethFrame{from: n.id, to: core.ZeroID, raw: raw})
}

//----------------------------------------------------------------------

// String returns a human-readable representation.
func (n *SimNode) String() string {
	if n == nil {
		return "SimNode{nil}"
	}
	return fmt.Sprintf("SimNode{%s @ %s}", n.id, n.pos)
}

// Draw a node on the canvas
func (n *SimNode) Draw(c Canvas) {
	c.Circle(n.pos.X, n.pos.Y, 0.3, 0, nil, ClrRed)
	c.Circle(n.pos.X, n.pos.Y, math.Sqrt(n.r2), 0.03, ClrGray, nil)
	c.Text(n.pos.X, n.pos.Y+1.3, 1, n.id.String(), "middle")
}

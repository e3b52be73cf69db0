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
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"agra/core"

	"code.cloudfoundry.org/clock"
	"github.com/bfix/gospel/logger"
)

//----------------------------------------------------------------------
// Network simulation: an ether that fans frames out by connectivity,
// a god-mode location oracle and a traffic scoreboard.
//----------------------------------------------------------------------

// ethFrame is one transmission on the ether. A zero 'to' address is a
// broadcast.
type ethFrame struct {
	from core.NodeID
	to   core.NodeID
	raw  []byte
}

// Network is the overall test controller.
type Network struct {
	env Environment
	clk clock.Clock

	// Node management
	nodes    map[core.NodeID]*SimNode
	nodeLock sync.RWMutex

	// Transport layer
	queue chan *ethFrame // "ether" for frame transport

	// State of the network
	active atomic.Bool
	uidGen atomic.Uint32

	tracer *Tracer
	cb     core.Listener
}

// NewNetwork creates an empty network in a given environment.
func NewNetwork(env Environment) *Network {
	return &Network{
		env:    env,
		clk:    clock.NewClock(),
		nodes:  make(map[core.NodeID]*SimNode),
		queue:  make(chan *ethFrame, 1024),
		tracer: NewTracer(),
	}
}

// AddNode places a node at a position with a given squared reach.
// Nodes are added before Run.
func (n *Network) AddNode(id core.NodeID, pos core.Position, r2 float64, cfg *core.Config) *SimNode {
	node := newSimNode(n, id, pos, r2, cfg)
	n.nodeLock.Lock()
	n.nodes[id] = node
	n.nodeLock.Unlock()
	return node
}

// Node returns a node by address.
func (n *Network) Node(id core.NodeID) *SimNode {
	n.nodeLock.RLock()
	defer n.nodeLock.RUnlock()
	return n.nodes[id]
}

// Nodes returns all nodes.
func (n *Network) Nodes() (list []*SimNode) {
	n.nodeLock.RLock()
	defer n.nodeLock.RUnlock()
	for _, node := range n.nodes {
		list = append(list, node)
	}
	return
}

// Tracer returns the delivery scoreboard.
func (n *Network) Tracer() *Tracer {
	return n.tracer
}

// Run the network: start all routers and serve the ether until the
// context is done.
func (n *Network) Run(ctx context.Context, cb core.Listener) {
	n.cb = cb
	n.active.Store(true)

	n.nodeLock.RLock()
	for _, node := range n.nodes {
		go node.Start(ctx, cb)
	}
	n.nodeLock.RUnlock()

	for n.active.Load() {
		select {
		case <-ctx.Done():
			return

		case f := <-n.queue:
			n.deliver(f)
		}
	}
}

// Stop the network and all nodes.
func (n *Network) Stop() {
	n.active.Store(false)
	n.nodeLock.RLock()
	defer n.nodeLock.RUnlock()
	for _, node := range n.nodes {
		if node.IsRunning() {
			node.Router.Stop()
		}
	}
}

// Send injects a data packet at 'from' addressed to 'to'; the assigned
// packet identifier is returned for trace lookups.
func (n *Network) Send(from, to core.NodeID, proto uint8, payload []byte) uint32 {
	node := n.Node(from)
	if node == nil {
		return 0
	}
	pkt := &core.Packet{
		Uid:      n.uidGen.Add(1),
		Src:      from,
		Dst:      to,
		Protocol: proto,
		Payload:  payload,
	}
	n.tracer.OnSend(pkt)
	node.RouteOutput(pkt)
	return pkt.Uid
}

// transmit puts a frame on the ether. Never blocks the caller: routers
// post-and-return.
func (n *Network) transmit(f *ethFrame) {
	if !n.active.Load() {
		return
	}
	go func() {
		n.queue <- f
	}()
}

// deliver fans a frame out to its receivers. An unreachable unicast
// destination is a failed link-layer transmission and is reported back
// to the sender.
func (n *Network) deliver(f *ethFrame) {
	sender := n.Node(f.from)
	if sender == nil {
		return
	}
	// broadcast: every running node in reach receives the beacon
	if f.to.IsZero() {
		for _, node := range n.Nodes() {
			if node.id == f.from || !node.IsRunning() {
				continue
			}
			if n.env.CanReach(sender, node) {
				node.traffIn.Add(uint64(len(f.raw)))
				go node.RecvHello(f.raw)
			}
		}
		return
	}
	// unicast data frame
	dest := n.Node(f.to)
	if dest == nil || !dest.IsRunning() || !n.env.CanReach(sender, dest) {
		// MAC-layer failure: hand the frame back to the sender
		hdrRaw, pkt, err := splitDataFrame(f.raw)
		if err != nil {
			logger.Printf(logger.WARN, "[sim] broken frame from %s: %s", f.from, err)
			return
		}
		hdr, err := core.DecodeDataHeader(hdrRaw)
		if err != nil {
			logger.Printf(logger.WARN, "[sim] broken frame from %s: %s", f.from, err)
			return
		}
		go sender.NotifyTxError(f.to, pkt, hdr)
		return
	}
	dest.traffIn.Add(uint64(len(f.raw)))
	hdrRaw, pkt, err := splitDataFrame(f.raw)
	if err != nil {
		logger.Printf(logger.WARN, "[sim] broken frame from %s: %s", f.from, err)
		return
	}
	n.tracer.OnHop(pkt.Uid, f.from, f.to)
	go dest.RecvData(hdrRaw, pkt)
}

// Traffic returns total bytes received and sent over all nodes.
func (n *Network) Traffic() (in, out uint64) {
	for _, node := range n.Nodes() {
		i, o := node.Traffic()
		in += i
		out += o
	}
	return
}

//----------------------------------------------------------------------
// God-mode location service: resolves any node address to its true
// position. A reactive lookup service would sit behind the same
// contract.
//----------------------------------------------------------------------

// Lookup returns the position of a node, InvalidPosition if unknown.
func (n *Network) Lookup(id core.NodeID) core.Position {
	node := n.Node(id)
	if node == nil {
		return core.InvalidPosition
	}
	return node.pos
}

//----------------------------------------------------------------------
// Frame encapsulation: the shim's "layer-3" packaging of a host packet
// behind the protocol header.
//----------------------------------------------------------------------

const packetEncapSize = 13 // uid + src + dst + protocol

var errFrameTooShort = errors.New("frame too short")

func encodePacket(pkt *core.Packet) []byte {
	buf := make([]byte, packetEncapSize+len(pkt.Payload))
	binary.BigEndian.PutUint32(buf[0:], pkt.Uid)
	binary.BigEndian.PutUint32(buf[4:], uint32(pkt.Src))
	binary.BigEndian.PutUint32(buf[8:], uint32(pkt.Dst))
	buf[12] = pkt.Protocol
	copy(buf[13:], pkt.Payload)
	return buf
}

func decodePacket(buf []byte) (*core.Packet, error) {
	if len(buf) < packetEncapSize {
		return nil, errFrameTooShort
	}
	return &core.Packet{
		Uid:      binary.BigEndian.Uint32(buf[0:]),
		Src:      core.NodeID(binary.BigEndian.Uint32(buf[4:])),
		Dst:      core.NodeID(binary.BigEndian.Uint32(buf[8:])),
		Protocol: buf[12],
		Payload:  buf[13:],
	}, nil
}

func splitDataFrame(raw []byte) (hdrRaw []byte, pkt *core.Packet, err error) {
	if len(raw) < core.DataHeaderSize {
		return nil, nil, errFrameTooShort
	}
	hdrRaw = raw[:core.DataHeaderSize]
	pkt, err = decodePacket(raw[core.DataHeaderSize:])
	return
}

//----------------------------------------------------------------------
// Rendering
//----------------------------------------------------------------------

// Render draws the environment, all nodes, their neighbor links and
// the traces of delivered packets.
func (n *Network) Render(c Canvas) {
	n.env.Draw(c)
	nodes := n.Nodes()
	for _, node := range nodes {
		node.Draw(c)
		selfPos := node.Pos()
		for _, id := range node.Table().PlanarNeighbors(selfPos) {
			peer := n.Node(id)
			if peer == nil || peer.id >= node.id {
				continue
			}
			c.Line(selfPos.X, selfPos.Y, peer.pos.X, peer.pos.Y, 0.15, ClrBlue)
		}
	}
	n.tracer.Render(c, n)
}

// Reach returns the largest broadcast radius (canvas scaling).
func (n *Network) Reach() float64 {
	max := 0.0
	for _, node := range n.Nodes() {
		max = math.Max(max, math.Sqrt(node.r2))
	}
	return max
}

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
	"sync"

	"agra/core"
)

//----------------------------------------------------------------------
// Packet traces: per-packet hop records and the delivery scoreboard.
//----------------------------------------------------------------------

// Trace is the life of one injected packet.
type Trace struct {
	Src, Dst  core.NodeID
	Hops      []core.NodeID // nodes visited in order (src, then each receiver)
	Delivered bool
	Reason    core.DropReason // set if the packet was terminated
}

// Contains returns true if the packet has already visited the node.
func (t *Trace) Contains(id core.NodeID) bool {
	for _, h := range t.Hops {
		if h == id {
			return true
		}
	}
	return false
}

// HopCount returns the number of hops travelled.
func (t *Trace) HopCount() int {
	if len(t.Hops) == 0 {
		return 0
	}
	return len(t.Hops) - 1
}

// Tracer is the network-wide scoreboard.
type Tracer struct {
	sync.Mutex
	recs map[uint32]*Trace
}

// NewTracer creates an empty scoreboard.
func NewTracer() *Tracer {
	return &Tracer{
		recs: make(map[uint32]*Trace),
	}
}

// OnSend records a packet injection.
func (t *Tracer) OnSend(pkt *core.Packet) {
	t.Lock()
	defer t.Unlock()
	t.recs[pkt.Uid] = &Trace{
		Src:  pkt.Src,
		Dst:  pkt.Dst,
		Hops: []core.NodeID{pkt.Src},
	}
}

// OnHop records a frame transmission between two nodes.
func (t *Tracer) OnHop(uid uint32, from, to core.NodeID) {
	t.Lock()
	defer t.Unlock()
	if tr, ok := t.recs[uid]; ok {
		tr.Hops = append(tr.Hops, to)
	}
}

// OnDeliver records a packet terminating at its destination.
func (t *Tracer) OnDeliver(pkt *core.Packet) {
	t.Lock()
	defer t.Unlock()
	if tr, ok := t.recs[pkt.Uid]; ok {
		tr.Delivered = true
	}
}

// OnDrop records a terminated packet.
func (t *Tracer) OnDrop(pkt *core.Packet, reason core.DropReason) {
	t.Lock()
	defer t.Unlock()
	if tr, ok := t.recs[pkt.Uid]; ok {
		tr.Reason = reason
	}
}

// Get returns the trace of a packet.
func (t *Tracer) Get(uid uint32) *Trace {
	t.Lock()
	defer t.Unlock()
	return t.recs[uid]
}

// Status returns the scoreboard: delivered and dropped packet counts,
// drop counts by reason and the total hops of delivered packets.
func (t *Tracer) Status() (delivered, dropped, pending, totalHops int, byReason map[core.DropReason]int) {
	t.Lock()
	defer t.Unlock()
	byReason = make(map[core.DropReason]int)
	for _, tr := range t.recs {
		switch {
		case tr.Delivered:
			delivered++
			totalHops += tr.HopCount()
		case tr.Reason != "":
			dropped++
			byReason[tr.Reason]++
		default:
			pending++
		}
	}
	return
}

// Render draws the hop traces of delivered packets.
func (t *Tracer) Render(c Canvas, n *Network) {
	t.Lock()
	defer t.Unlock()
	for _, tr := range t.recs {
		if !tr.Delivered {
			continue
		}
		for i := 1; i < len(tr.Hops); i++ {
			from := n.Node(tr.Hops[i-1])
			to := n.Node(tr.Hops[i])
			if from == nil || to == nil {
				continue
			}
			c.Line(from.pos.X, from.pos.Y, to.pos.X, to.pos.Y, 0.3, ClrGreen)
		}
	}
}

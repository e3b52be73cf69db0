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

package core

//----------------------------------------------------------------------
// Forwarding engine: a stateless dispatcher over the position table.
// All mode carry-over lives in the packet header, so any node on the
// path can continue a decision another node started.
//----------------------------------------------------------------------

// ForwardDecision reports how a next hop was chosen.
type ForwardDecision int

// Decision outcomes
const (
	DecideNone      ForwardDecision = iota // no viable next hop
	DecideGreedy                           // strict progress toward dst
	DecideRepulsion                        // electrostatic descent
	DecidePerimeter                        // right-hand rule on planar graph
)

// NextHop selects the next hop for a packet at a node. The header is
// updated in place when the packet enters perimeter mode. prevHopPos
// is the position of the node the packet came from; for packets
// originating here it equals selfPos.
func NextHop(tbl *PositionTable, cfg *Config, hdr *DataHeader, selfPos, prevHopPos Position) (NodeID, ForwardDecision) {
	// a packet already in perimeter mode stays on the planar graph
	// until it makes progress past its recorded entry distance (the
	// caller clears the flag on progress before dispatching).
	if hdr.InPerimeter() {
		next := tbl.BestAngle(prevHopPos, selfPos)
		if next.IsZero() {
			return ZeroID, DecideNone
		}
		return next, DecidePerimeter
	}

	if cfg.RepulsionMode {
		next := tbl.ElectrostaticBestNeighbor(hdr.DstPos, selfPos, cfg.HoleCenter, cfg.HoleRadius)
		if next.IsZero() {
			return ZeroID, DecideNone
		}
		return next, DecideRepulsion
	}

	next := tbl.BestNeighbor(hdr.DstPos, selfPos)
	if !next.IsZero() {
		return next, DecideGreedy
	}

	// greedy failed: enter recovery on the planar subgraph. The entry
	// distance is recorded so a downstream node knows when the packet
	// has made progress and may return to greedy.
	if !cfg.PerimeterMode {
		return ZeroID, DecideNone
	}
	hdr.EnterPerimeter(selfPos.Distance(hdr.DstPos))
	next = tbl.BestAngle(selfPos, selfPos)
	if next.IsZero() {
		return ZeroID, DecideNone
	}
	return next, DecidePerimeter
}

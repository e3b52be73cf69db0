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

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/bfix/gospel/logger"
)

//----------------------------------------------------------------------
// Position table: each node keeps one entry per one-hop neighbor with
// the position and the time it was last heard. Entries are created by
// Hello beacons and die by expiry, TX-error removal or Clear. All
// next-hop selection (greedy, electrostatic, perimeter) runs against
// this table; there is no other routing state.
//----------------------------------------------------------------------

// Electrostatic model constants: unit destination charge and inverse
// square repulsion from the hole's image charge.
const (
	potQ = 1.0
	potN = 2.0
)

type ptableEntry struct {
	pos       Position
	lastHeard time.Time
}

// PositionTable holds the one-hop neighborhood of a node.
type PositionTable struct {
	sync.Mutex
	self     NodeID
	clk      clock.Clock
	lifetime time.Duration
	recs     map[NodeID]ptableEntry
	listener Listener
}

// NewPositionTable creates an empty table for a node. Entries expire
// 'lifetime' after the last beacon from the neighbor.
func NewPositionTable(self NodeID, lifetime time.Duration, clk clock.Clock) *PositionTable {
	return &PositionTable{
		self:     self,
		clk:      clk,
		lifetime: lifetime,
		recs:     make(map[NodeID]ptableEntry),
	}
}

// SetListener registers a callback for neighbor events.
func (t *PositionTable) SetListener(l Listener) {
	t.Lock()
	defer t.Unlock()
	t.listener = l
}

// AddEntry upserts a neighbor: position and timestamp are both
// replaced on update.
func (t *PositionTable) AddEntry(id NodeID, pos Position) {
	t.Lock()
	defer t.Unlock()

	_, known := t.recs[id]
	t.recs[id] = ptableEntry{pos: pos, lastHeard: t.clk.Now()}

	ev := EvNeighborAdded
	if known {
		ev = EvNeighborUpdated
	}
	if t.listener != nil {
		t.listener(&Event{Type: ev, Node: t.self, Ref: id})
	}
}

// DeleteEntry removes a neighbor. Idempotent.
func (t *PositionTable) DeleteEntry(id NodeID) {
	t.Lock()
	defer t.Unlock()
	delete(t.recs, id)
}

// IsNeighbor returns true if the node has an entry in the table.
func (t *PositionTable) IsNeighbor(id NodeID) bool {
	t.Lock()
	defer t.Unlock()
	_, ok := t.recs[id]
	return ok
}

// LastHeard returns the time the neighbor was last heard. The zero
// time is returned for the zero address; callers gate other lookups
// on IsNeighbor.
func (t *PositionTable) LastHeard(id NodeID) time.Time {
	if id.IsZero() {
		return time.Time{}
	}
	t.Lock()
	defer t.Unlock()
	return t.recs[id].lastHeard
}

// Position returns the recorded position of a neighbor.
func (t *PositionTable) Position(id NodeID) (Position, bool) {
	t.Lock()
	defer t.Unlock()
	e, ok := t.recs[id]
	return e.pos, ok
}

// NumNeighbors returns the current table size.
func (t *PositionTable) NumNeighbors() int {
	t.Lock()
	defer t.Unlock()
	return len(t.recs)
}

// Purge erases entries whose lifetime has elapsed.
func (t *PositionTable) Purge() {
	t.Lock()
	defer t.Unlock()
	t.purge()
}

func (t *PositionTable) purge() {
	if len(t.recs) == 0 {
		return
	}
	now := t.clk.Now()
	for id, e := range t.recs {
		if !e.lastHeard.Add(t.lifetime).After(now) {
			delete(t.recs, id)
			if t.listener != nil {
				t.listener(&Event{Type: EvNeighborExpired, Node: t.self, Ref: id})
			}
		}
	}
}

// Clear empties the table.
func (t *PositionTable) Clear() {
	t.Lock()
	defer t.Unlock()
	t.recs = make(map[NodeID]ptableEntry)
}

// ids returns the table keys in ascending address order. Selection
// tie-breaks ("first entry") are defined against this order.
func (t *PositionTable) ids() []NodeID {
	list := make([]NodeID, 0, len(t.recs))
	for id := range t.recs {
		list = append(list, id)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

//----------------------------------------------------------------------
// Next-hop selection
//----------------------------------------------------------------------

// BestNeighbor returns the neighbor closest to the destination if that
// neighbor is strictly closer than this node itself; the zero address
// otherwise (greedy forwarding has failed and recovery may start).
func (t *PositionTable) BestNeighbor(dstPos, selfPos Position) NodeID {
	t.Lock()
	defer t.Unlock()
	t.purge()

	if len(t.recs) == 0 {
		logger.Printf(logger.DBG, "[ptable] %s: greedy on empty table (dst %s)", t.self, dstPos)
		return ZeroID
	}
	initialDistance := selfPos.Distance(dstPos)

	bestID := ZeroID
	bestDistance := math.MaxFloat64
	for _, id := range t.ids() {
		if d := t.recs[id].pos.Distance(dstPos); bestDistance > d {
			bestID = id
			bestDistance = d
		}
	}
	if initialDistance > bestDistance {
		return bestID
	}
	return ZeroID
}

// ElectrostaticBestNeighbor returns the neighbor with the lowest
// scalar potential in a field with an attracting charge at the
// destination and a repulsing image charge at the hole center, if that
// potential is lower than the node's own; the zero address otherwise.
func (t *PositionTable) ElectrostaticBestNeighbor(dstPos, selfPos, holeCenter Position, holeRadius float64) NodeID {
	t.Lock()
	defer t.Unlock()
	t.purge()

	if len(t.recs) == 0 {
		logger.Printf(logger.DBG, "[ptable] %s: repulsion on empty table (dst %s)", t.self, dstPos)
		return ZeroID
	}

	// image charge induced by the hole
	b := holeCenter.Distance(dstPos)
	ql := potQ * math.Pow(holeRadius, potN+1) / (potN * math.Pow(b+holeRadius, 2))

	potential := func(p Position) (float64, bool) {
		dDst := p.Distance(dstPos)
		dHole := p.Distance(holeCenter)
		if dDst == 0 || dHole == 0 {
			return 0, false
		}
		return -potQ/dDst + ql/math.Pow(dHole, potN), true
	}

	initPotential, ok := potential(selfPos)
	if !ok {
		return ZeroID
	}
	bestID := ZeroID
	minPotential := math.MaxFloat64
	for _, id := range t.ids() {
		tmp, ok := potential(t.recs[id].pos)
		if !ok {
			return ZeroID
		}
		if minPotential > tmp {
			bestID = id
			minPotential = tmp
		}
	}
	if initPotential > minPotential {
		return bestID
	}
	return ZeroID
}

// BestAngle returns the next hop under the right-hand rule: the
// planar neighbor with the smallest non-zero Angle(self, prevHop,
// neighbor), i.e. the first one met sweeping clockwise from the edge
// back to the previous hop. If no candidate qualifies, the first
// table entry is used.
func (t *PositionTable) BestAngle(prevHopPos, selfPos Position) NodeID {
	t.Lock()
	defer t.Unlock()
	t.purge()

	if len(t.recs) == 0 {
		logger.Printf(logger.DBG, "[ptable] %s: recovery on empty table", t.self)
		return ZeroID
	}
	excluded := t.planarize(selfPos)

	ids := t.ids()
	bestID := ZeroID
	bestAngle := 360.0
	for _, id := range ids {
		if _, skip := excluded[id]; skip {
			continue
		}
		tmp := Angle(selfPos, prevHopPos, t.recs[id].pos)
		if bestAngle > tmp && tmp != 0 {
			bestID = id
			bestAngle = tmp
		}
	}
	if bestID.IsZero() {
		bestID = ids[0]
	}
	return bestID
}

// planarize computes the set of neighbors excluded by the Gabriel
// criterion against the current table. A neighbor v is excluded if a
// witness w sits closer to both endpoints of the edge (self,v) than
// the endpoints sit to each other.
func (t *PositionTable) planarize(selfPos Position) map[NodeID]struct{} {
	excluded := make(map[NodeID]struct{})
	for v, ev := range t.recs {
		for w, ew := range t.recs {
			if v == w {
				continue
			}
			if selfPos.Distance(ev.pos) > math.Max(selfPos.Distance(ew.pos), ev.pos.Distance(ew.pos)) {
				excluded[v] = struct{}{}
				break
			}
		}
	}
	return excluded
}

// PlanarNeighbors returns the neighbors retained by the Gabriel
// planarization against the given node position.
func (t *PositionTable) PlanarNeighbors(selfPos Position) []NodeID {
	t.Lock()
	defer t.Unlock()
	excluded := t.planarize(selfPos)
	list := make([]NodeID, 0, len(t.recs))
	for _, id := range t.ids() {
		if _, skip := excluded[id]; !skip {
			list = append(list, id)
		}
	}
	return list
}

// Angle returns the counter-clockwise angle in degrees between the ray
// center->node and the ray center->ref, normalized to [0,360). The
// z component does not participate (the perimeter rule is planar).
// Degenerate rays yield 0.
func Angle(center, ref, node Position) float64 {
	refA := math.Atan2(ref.Y-center.Y, ref.X-center.X)
	nodeA := math.Atan2(node.Y-center.Y, node.X-center.X)
	if (ref.X == center.X && ref.Y == center.Y) ||
		(node.X == center.X && node.Y == center.Y) {
		return 0
	}
	angle := (refA - nodeA) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	if angle >= 360 {
		angle -= 360
	}
	return angle
}

// NeighborList returns a printable dump of the table, sorted by
// address, with the planar flag for each neighbor.
func (t *PositionTable) NeighborList(selfPos Position) string {
	t.Lock()
	defer t.Unlock()

	if len(t.recs) == 0 {
		return "[]"
	}
	excluded := t.planarize(selfPos)
	list := make([]string, 0, len(t.recs))
	for _, id := range t.ids() {
		e := t.recs[id]
		_, skip := excluded[id]
		list = append(list, fmt.Sprintf("{%s,%s,planar=%v}", id, e.pos, !skip))
	}
	return "[" + strings.Join(list, ",") + "]"
}

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
	"math"
	"testing"
	"time"
)

// Chain topology: greedy forwarding makes progress at every hop and
// the packet never leaves greedy mode.
func TestNextHopGreedyChain(t *testing.T) {
	cfg := DefaultConfig()
	dst := Position{X: 150}

	// the view at node B=(50,0) with neighbors A and C
	tbl, _ := newTestTable(time.Second)
	tbl.AddEntry(1, Position{})       // A
	tbl.AddEntry(3, Position{X: 100}) // C

	hdr := NewDataHeader(dst, 17)
	self := Position{X: 50}
	next, decision := NextHop(tbl, cfg, hdr, self, Position{})
	if next != 3 || decision != DecideGreedy {
		t.Errorf("got %s/%d, want the next chain node via greedy", next, decision)
	}
	if hdr.InPerimeter() {
		t.Error("packet left greedy mode")
	}
}

// Local minimum: the only neighbor is farther from the destination, so
// the packet enters perimeter mode with its current distance recorded.
func TestNextHopPerimeterEntry(t *testing.T) {
	cfg := DefaultConfig()
	dst := Position{X: 1000}
	self := Position{} // A=(0,0)

	tbl, _ := newTestTable(time.Second)
	tbl.AddEntry(2, Position{Y: 50}) // B, farther from dst than A

	hdr := NewDataHeader(dst, 17)
	next, decision := NextHop(tbl, cfg, hdr, self, self)
	if next != 2 || decision != DecidePerimeter {
		t.Fatalf("got %s/%d, want recovery via the only neighbor", next, decision)
	}
	if !hdr.InPerimeter() {
		t.Fatal("mode flag not set")
	}
	if hdr.PerimeterDistance != 1000 {
		t.Errorf("entry distance %f, want 1000", hdr.PerimeterDistance)
	}
}

// Without progress past the recorded entry distance the packet stays
// on the perimeter; with progress the caller returns it to greedy.
func TestNextHopPerimeterStay(t *testing.T) {
	cfg := DefaultConfig()
	dst := Position{X: 1000}

	// the view at B=(0,50): distance to dst ~1001.25 > 1000
	self := Position{Y: 50}
	if d := self.Distance(dst); d <= 1000 {
		t.Fatalf("bad fixture: %f", d)
	}
	tbl, _ := newTestTable(time.Second)
	tbl.AddEntry(1, Position{}) // A

	hdr := NewDataHeader(dst, 17)
	hdr.EnterPerimeter(1000)
	next, decision := NextHop(tbl, cfg, hdr, self, Position{})
	if decision != DecidePerimeter {
		t.Errorf("got decision %d, want perimeter", decision)
	}
	if next != 1 {
		t.Errorf("got %s, want the previous hop (only candidate)", next)
	}
	if !hdr.InPerimeter() {
		t.Error("mode flag lost without progress")
	}
}

func TestNextHopPerimeterDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerimeterMode = false
	dst := Position{X: 1000}
	self := Position{}

	tbl, _ := newTestTable(time.Second)
	tbl.AddEntry(2, Position{Y: 50})

	hdr := NewDataHeader(dst, 17)
	next, decision := NextHop(tbl, cfg, hdr, self, self)
	if next != ZeroID || decision != DecideNone {
		t.Errorf("got %s/%d, want no next hop", next, decision)
	}
	if hdr.InPerimeter() {
		t.Error("mode flag set with recovery disabled")
	}
}

// Repulsion replaces the greedy step; a failed electrostatic decision
// does not enter perimeter mode.
func TestNextHopRepulsion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepulsionMode = true
	cfg.HoleCenter = Position{Y: 3250}
	cfg.HoleRadius = math.Sqrt2 * 2000

	dst := Position{Y: 6500}
	self := Position{}
	tbl, _ := newTestTable(time.Second)
	tbl.AddEntry(1, Position{Y: 100})
	tbl.AddEntry(2, Position{X: 2000, Y: 100})

	hdr := NewDataHeader(dst, 17)
	next, decision := NextHop(tbl, cfg, hdr, self, self)
	if next != 2 || decision != DecideRepulsion {
		t.Errorf("got %s/%d, want the detour neighbor via repulsion", next, decision)
	}

	// no neighbor below the node's own potential: queue, not recovery
	tbl.Clear()
	tbl.AddEntry(1, Position{Y: 3000}) // deep towards the hole
	self = Position{Y: 1000}
	hdr = NewDataHeader(dst, 17)
	next, decision = NextHop(tbl, cfg, hdr, self, self)
	if next != ZeroID || decision != DecideNone {
		t.Errorf("got %s/%d, want no next hop", next, decision)
	}
	if hdr.InPerimeter() {
		t.Error("repulsion failure entered perimeter mode")
	}
}

func TestNextHopEmptyTable(t *testing.T) {
	cfg := DefaultConfig()
	tbl, _ := newTestTable(time.Second)
	hdr := NewDataHeader(Position{X: 100}, 17)
	next, decision := NextHop(tbl, cfg, hdr, Position{}, Position{})
	if next != ZeroID || decision != DecideNone {
		t.Errorf("got %s/%d, want no next hop", next, decision)
	}
}

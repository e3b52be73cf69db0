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
	"testing"

	"agra/core"
)

func TestIntersect(t *testing.T) {
	wall := &Line{
		From: core.Position{X: 30, Y: 50},
		To:   core.Position{X: 70, Y: 50},
	}
	num := 0
	blocked := 0
	for i := 0.; i <= 100.; i += 5. {
		num++
		line := &Line{
			From: core.Position{X: 50, Y: 0},
			To:   core.Position{X: 50 - 2*(i-50), Y: 100},
		}
		rc := line.Intersect(wall)
		if rc {
			blocked++
		}
		t.Logf("%2d -- %v\n", int(i), rc)
	}
	t.Logf("Blocked %d from %d\n", blocked, num)
	if blocked == 0 || blocked == num {
		t.Errorf("implausible wall: %d of %d blocked", blocked, num)
	}
}

func TestSegmentDistance(t *testing.T) {
	l := &Line{
		From: core.Position{X: 0, Y: 0},
		To:   core.Position{X: 10, Y: 0},
	}
	tests := []struct {
		p    core.Position
		want float64
	}{
		{core.Position{X: 5, Y: 3}, 3},
		{core.Position{X: -4, Y: 0}, 4},
		{core.Position{X: 13, Y: 4}, 5},
		{core.Position{X: 7, Y: 0}, 0},
	}
	for _, tc := range tests {
		if got := l.DistanceTo(tc.p); got != tc.want {
			t.Errorf("distance to %s: got %f, want %f", tc.p, got, tc.want)
		}
	}
}

// A hole blocks the line of sight crossing it but not paths around it.
func TestHoleConnectivity(t *testing.T) {
	env := NewHoleModel(core.Position{X: 50, Y: 50}, 20)
	net := NewNetwork(env)
	cfg := core.DefaultConfig()

	r2 := 10000.0 // reach 100: everyone is in radio range
	a := net.AddNode(1, core.Position{X: 50, Y: 10}, r2, cfg)
	b := net.AddNode(2, core.Position{X: 50, Y: 90}, r2, cfg)
	c := net.AddNode(3, core.Position{X: 10, Y: 50}, r2, cfg)

	if env.CanReach(a, b) {
		t.Error("path through the hole not blocked")
	}
	if !env.CanReach(a, c) || !env.CanReach(b, c) {
		t.Error("path around the hole blocked")
	}
	if !env.Contains(core.Position{X: 55, Y: 55}) {
		t.Error("hole does not contain its interior")
	}
}

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
	"math"

	"agra/core"
)

// Connectivity between two nodes based on the "physical" model of the
// environment.
type Connectivity func(n1, n2 *SimNode) bool

// Environment models the deployment area: who can reach whom, and how
// to draw the obstacles.
type Environment interface {
	// CanReach implements the connectivity type
	CanReach(n1, n2 *SimNode) bool

	// Draw the environment on a canvas
	Draw(c Canvas)
}

//----------------------------------------------------------------------
// Open field: pure unit-disk connectivity.
//----------------------------------------------------------------------

// OpenModel is a field without obstacles.
type OpenModel struct{}

// NewOpenModel returns an obstacle-free environment.
func NewOpenModel() *OpenModel {
	return &OpenModel{}
}

// CanReach implements the connectivity type
func (m *OpenModel) CanReach(n1, n2 *SimNode) bool {
	d2 := n1.Pos().Distance2(n2.Pos())
	return n1.r2 > d2 || n2.r2 > d2
}

// Draw the environment on a canvas
func (m *OpenModel) Draw(c Canvas) {}

//----------------------------------------------------------------------
// Walls with opacity.
//----------------------------------------------------------------------

// WallModel for walls that reduce radio reach.
type WallModel struct {
	walls []*Wall
}

// NewWallModel returns an empty model for walls
func NewWallModel() *WallModel {
	return &WallModel{
		walls: make([]*Wall, 0),
	}
}

// CanReach implements the connectivity type
func (m *WallModel) CanReach(n1, n2 *SimNode) bool {
	los := &Line{n1.Pos(), n2.Pos()}
	red := 1.0
	for _, w := range m.walls {
		if w.Line.Intersect(los) {
			red *= w.reduce
		}
	}
	if red < 1e-8 {
		return false
	}
	d2 := n1.Pos().Distance2(n2.Pos()) / red
	return n1.r2 > d2 || n2.r2 > d2
}

// Add a new wall
func (m *WallModel) Add(from, to core.Position, red float64) {
	wall := new(Wall)
	wall.From = from
	wall.To = to
	wall.reduce = red
	m.walls = append(m.walls, wall)
}

// Draw the environment on a canvas
func (m *WallModel) Draw(c Canvas) {
	for _, w := range m.walls {
		c.Line(w.From.X, w.From.Y, w.To.X, w.To.Y, 0.7, ClrBlack)
	}
}

// Wall with opacity: reach is reduced by factor
type Wall struct {
	Line
	reduce float64
}

//----------------------------------------------------------------------
// Circular hole: a disc empty of nodes that blocks radio paths
// crossing it. This is the communication hole the routing protocol is
// designed to get around.
//----------------------------------------------------------------------

// HoleModel is a field with one circular obstacle.
type HoleModel struct {
	Center core.Position
	Radius float64
}

// NewHoleModel returns an environment with a circular obstacle.
func NewHoleModel(center core.Position, radius float64) *HoleModel {
	return &HoleModel{
		Center: center,
		Radius: radius,
	}
}

// CanReach implements the connectivity type
func (m *HoleModel) CanReach(n1, n2 *SimNode) bool {
	d2 := n1.Pos().Distance2(n2.Pos())
	if n1.r2 <= d2 && n2.r2 <= d2 {
		return false
	}
	los := &Line{n1.Pos(), n2.Pos()}
	return los.DistanceTo(m.Center) >= m.Radius
}

// Contains returns true if a position falls inside the hole.
func (m *HoleModel) Contains(p core.Position) bool {
	return m.Center.Distance(p) < m.Radius
}

// Draw the environment on a canvas
func (m *HoleModel) Draw(c Canvas) {
	c.Circle(m.Center.X, m.Center.Y, m.Radius, 0.5, ClrBlack, ClrGrayTr)
}

//----------------------------------------------------------------------
// Geometry helpers
//----------------------------------------------------------------------

// Line in 2D space (z is ignored by the obstacle models).
type Line struct {
	From core.Position
	To   core.Position
}

// Intersect returns true if two segments intersect.
func (l *Line) Intersect(t *Line) bool {
	return l.Side(t.From)*l.Side(t.To) == -1 && t.Side(l.From)*t.Side(l.To) == -1
}

// Side returns -1 for left, 1 for right side and 0 for "on line"
func (l *Line) Side(p core.Position) int {
	z := (p.X-l.From.X)*(l.To.Y-l.From.Y) - (p.Y-l.From.Y)*(l.To.X-l.From.X)
	if math.Abs(z) < 1e-8 {
		return 0
	}
	if z < 0 {
		return -1
	}
	return 1
}

// DistanceTo returns the distance of a point to the segment.
func (l *Line) DistanceTo(p core.Position) float64 {
	dx := l.To.X - l.From.X
	dy := l.To.Y - l.From.Y
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return l.From.Distance(p)
	}
	t := ((p.X-l.From.X)*dx + (p.Y-l.From.Y)*dy) / len2
	t = math.Max(0, math.Min(1, t))
	cx := l.From.X + t*dx
	cy := l.From.Y + t*dy
	return math.Sqrt((p.X-cx)*(p.X-cx) + (p.Y-cy)*(p.Y-cy))
}

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

// Event types
const (
	EvHelloSent       = 1  // Hello beacon broadcast
	EvNeighborAdded   = 2  // new neighbor learned from a Hello
	EvNeighborUpdated = 3  // neighbor position refreshed
	EvNeighborExpired = 4  // neighbor purged (no beacons)
	EvNeighborLost    = 5  // neighbor removed after a TX error
	EvPacketForwarded = 6  // data packet sent to a next hop
	EvPacketDelivered = 7  // data packet terminated at this node
	EvPacketQueued    = 8  // data packet deferred (no next hop)
	EvPacketDropped   = 9  // data packet terminated with an error
	EvPerimeterEnter  = 10 // packet switched to perimeter mode
	EvPerimeterExit   = 11 // packet returned to greedy mode
	EvRouterStarted   = 12 // router brought up
	EvRouterStopped   = 13 // router shut down
)

// Event emitted by a router if something interesting happens.
type Event struct {
	Type int    // event type (see consts)
	Node NodeID // reporting node
	Ref  NodeID // reference node (optional)
	Val  any    // additional data (optional)
}

// Listener for router events
type Listener func(*Event)

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
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
)

//----------------------------------------------------------------------
// Test doubles for the host stack, location service and mobility
//----------------------------------------------------------------------

type fwdRecord struct {
	pkt  *Packet
	hdr  *DataHeader
	next NodeID
}

type stubHost struct {
	broadcasts [][]byte
	forwards   []fwdRecord
	delivered  []*Packet
	drops      []dropRecord
}

func (h *stubHost) UnicastForward(pkt *Packet, hdr *DataHeader, next NodeID) {
	h.forwards = append(h.forwards, fwdRecord{pkt, hdr, next})
}

func (h *stubHost) LocalDeliver(pkt *Packet, hdr *DataHeader) {
	h.delivered = append(h.delivered, pkt)
}

func (h *stubHost) Error(pkt *Packet, hdr *DataHeader, reason DropReason) {
	h.drops = append(h.drops, dropRecord{pkt, reason})
}

func (h *stubHost) Broadcast(raw []byte) {
	h.broadcasts = append(h.broadcasts, raw)
}

type stubLocService map[NodeID]Position

func (s stubLocService) Lookup(id NodeID) Position {
	if pos, ok := s[id]; ok {
		return pos
	}
	return InvalidPosition
}

type stubMobility Position

func (s stubMobility) SelfPosition() Position {
	return Position(s)
}

func newTestRouter(self NodeID, pos Position, loc stubLocService) (*Router, *stubHost, *fakeclock.FakeClock) {
	cfg := DefaultConfig()
	host := new(stubHost)
	clk := fakeclock.NewFakeClock(time.Unix(1000, 0))
	r := NewRouter(self, cfg, clk, host, loc, stubMobility(pos))
	r.active.Store(true)
	return r, host, clk
}

func recvData(r *Router, f fwdRecord) {
	r.RecvData(f.hdr.Encode(), f.pkt)
}

//----------------------------------------------------------------------

func TestRouteOutputGreedy(t *testing.T) {
	loc := stubLocService{4: {X: 150}}
	r, host, _ := newTestRouter(1, Position{}, loc)
	r.Table().AddEntry(2, Position{X: 50})

	pkt := &Packet{Uid: 1, Src: 1, Dst: 4, Protocol: 17}
	r.RouteOutput(pkt)

	// the first data packet triggers an immediate beacon
	if len(host.broadcasts) != 1 {
		t.Fatalf("got %d beacons, want 1", len(host.broadcasts))
	}
	if m, err := DecodeHello(host.broadcasts[0]); err != nil || m.Origin != 1 {
		t.Errorf("bad beacon: %v %v", m, err)
	}
	if len(host.forwards) != 1 {
		t.Fatalf("packet not forwarded")
	}
	f := host.forwards[0]
	if f.next != 2 || f.hdr.PrevHop != 1 || f.hdr.DstPos.X != 150 {
		t.Errorf("bad transmission: next=%s hdr=%s", f.next, f.hdr)
	}
	if f.hdr.InPerimeter() {
		t.Error("packet left greedy mode")
	}
}

func TestRouteOutputLocationUnknown(t *testing.T) {
	r, host, _ := newTestRouter(1, Position{}, stubLocService{})
	r.RouteOutput(&Packet{Uid: 1, Src: 1, Dst: 4})

	if len(host.drops) != 1 || host.drops[0].reason != DropLocationUnknown {
		t.Fatalf("got %v, want a location-unknown drop", host.drops)
	}
	if len(host.forwards) != 0 {
		t.Error("packet forwarded without a destination position")
	}
}

// A packet without a next hop is parked and flushed by the periodic
// queue check once a usable neighbor shows up.
func TestQueueAndDrain(t *testing.T) {
	loc := stubLocService{4: {X: 150}}
	r, host, _ := newTestRouter(1, Position{}, loc)
	cfg := r.cfg
	cfg.PerimeterMode = false // no neighbors anyway

	pkt := &Packet{Uid: 1, Src: 1, Dst: 4}
	r.RouteOutput(pkt)
	if len(host.forwards) != 0 {
		t.Fatal("forwarded without neighbors")
	}
	if r.queue.Size() != 1 {
		t.Fatal("packet not queued")
	}

	// still no route: the packet stays queued
	r.CheckQueue()
	if len(host.forwards) != 0 || r.queue.Size() != 1 {
		t.Fatal("queue check transmitted without a route")
	}

	// a beacon from a viable neighbor arrives
	hello := &HelloMsg{Origin: 2, Pos: Position{X: 50}}
	r.RecvHello(hello.Encode())
	r.CheckQueue()
	if len(host.forwards) != 1 {
		t.Fatal("queued packet not flushed")
	}
	if f := host.forwards[0]; f.next != 2 || f.pkt != pkt {
		t.Errorf("bad flush: next=%s pkt=%s", f.next, f.pkt)
	}
	if r.queue.Size() != 0 {
		t.Error("queue not drained")
	}
}

// A queued destination that stops resolving is flushed with
// route-unavailable.
func TestQueueRouteUnavailable(t *testing.T) {
	loc := stubLocService{4: {X: 150}}
	r, host, _ := newTestRouter(1, Position{}, loc)
	r.cfg.PerimeterMode = false

	r.RouteOutput(&Packet{Uid: 1, Src: 1, Dst: 4})
	if r.queue.Size() != 1 {
		t.Fatal("packet not queued")
	}
	delete(loc, 4)
	r.CheckQueue()
	if len(host.drops) != 1 || host.drops[0].reason != DropRouteUnavailable {
		t.Fatalf("got %v, want a route-unavailable drop", host.drops)
	}
	if r.queue.Size() != 0 {
		t.Error("queue not flushed")
	}
}

func TestTransitDeliver(t *testing.T) {
	loc := stubLocService{}
	r, host, _ := newTestRouter(4, Position{X: 150}, loc)

	hdr := NewDataHeader(Position{X: 150}, 17)
	hdr.PrevHop = 3
	pkt := &Packet{Uid: 7, Src: 1, Dst: 4, Protocol: 17}
	r.RecvData(hdr.Encode(), pkt)

	if len(host.delivered) != 1 || host.delivered[0].Uid != 7 {
		t.Fatalf("packet not delivered: %v", host.delivered)
	}
	if len(host.forwards) != 0 {
		t.Error("terminating packet forwarded")
	}
}

func TestTransitNoRoute(t *testing.T) {
	r, host, _ := newTestRouter(2, Position{X: 50}, stubLocService{})
	r.cfg.PerimeterMode = false

	hdr := NewDataHeader(Position{X: 150}, 17)
	hdr.PrevHop = 1
	r.RecvData(hdr.Encode(), &Packet{Uid: 7, Src: 1, Dst: 4})

	// transit traffic is never queued
	if r.queue.Size() != 0 {
		t.Error("transit packet queued")
	}
	if len(host.drops) != 1 || host.drops[0].reason != DropNoRoute {
		t.Fatalf("got %v, want a no-route drop", host.drops)
	}
}

func TestMalformedDataSilentDrop(t *testing.T) {
	r, host, _ := newTestRouter(2, Position{X: 50}, stubLocService{})
	r.RecvData([]byte{0xff, 1, 2}, &Packet{Uid: 7, Dst: 4})
	if len(host.drops) != 0 || len(host.forwards) != 0 {
		t.Error("malformed packet propagated")
	}
}

// A packet in perimeter mode that passes its entry distance returns to
// greedy forwarding at the node where the progress shows.
func TestPerimeterExit(t *testing.T) {
	loc := stubLocService{9: {X: 1000}}
	r, host, _ := newTestRouter(5, Position{X: 500}, loc)
	r.Table().AddEntry(6, Position{X: 600})

	hdr := NewDataHeader(Position{X: 1000}, 17)
	hdr.EnterPerimeter(1000)
	hdr.PrevHop = 2
	r.RecvData(hdr.Encode(), &Packet{Uid: 7, Src: 1, Dst: 9})

	if len(host.forwards) != 1 {
		t.Fatal("packet not forwarded")
	}
	f := host.forwards[0]
	if f.hdr.InPerimeter() {
		t.Error("mode flag survived past the entry distance")
	}
	if f.next != 6 {
		t.Errorf("got %s, want the greedy next hop", f.next)
	}
}

// Without progress the packet stays on the perimeter.
func TestPerimeterStay(t *testing.T) {
	loc := stubLocService{1: {}, 9: {X: 1000}}
	r, host, _ := newTestRouter(2, Position{Y: 50}, loc)
	r.Table().AddEntry(1, Position{})

	hdr := NewDataHeader(Position{X: 1000}, 17)
	hdr.EnterPerimeter(1000)
	hdr.PrevHop = 1
	r.RecvData(hdr.Encode(), &Packet{Uid: 7, Src: 1, Dst: 9})

	if len(host.forwards) != 1 {
		t.Fatal("packet not forwarded")
	}
	if !host.forwards[0].hdr.InPerimeter() {
		t.Error("mode flag cleared without progress")
	}
}

// A TX error removes the neighbor and re-runs forwarding once.
func TestTxErrorRecovery(t *testing.T) {
	loc := stubLocService{4: {X: 150}}
	r, host, _ := newTestRouter(1, Position{}, loc)
	r.Table().AddEntry(2, Position{X: 50, Y: 10})
	r.Table().AddEntry(3, Position{X: 50, Y: -10})

	pkt := &Packet{Uid: 1, Src: 1, Dst: 4}
	r.RouteOutput(pkt)
	if len(host.forwards) != 1 {
		t.Fatal("packet not forwarded")
	}
	first := host.forwards[0].next

	r.NotifyTxError(first, pkt, host.forwards[0].hdr)
	if r.Table().IsNeighbor(first) {
		t.Error("failing neighbor still in table")
	}
	if len(host.forwards) != 2 {
		t.Fatal("packet not re-submitted")
	}
	second := host.forwards[1].next
	if second == first || second.IsZero() {
		t.Errorf("re-submission picked %s", second)
	}

	// a second failure leaves no neighbor, which terminates the packet
	r.cfg.PerimeterMode = false
	r.NotifyTxError(second, pkt, host.forwards[1].hdr)
	if len(host.drops) != 1 || host.drops[0].reason != DropNoRoute {
		t.Fatalf("got %v, want a no-route drop", host.drops)
	}
}

// Shutdown drains the queue and clears the table.
func TestShutdown(t *testing.T) {
	loc := stubLocService{4: {X: 150}}
	r, host, _ := newTestRouter(1, Position{}, loc)
	r.cfg.PerimeterMode = false
	r.Table().AddEntry(9, Position{X: -50})

	r.RouteOutput(&Packet{Uid: 1, Src: 1, Dst: 4})
	if r.queue.Size() != 1 {
		t.Fatal("packet not queued")
	}
	r.shutdown()
	if len(host.drops) != 1 || host.drops[0].reason != DropInterfaceDown {
		t.Fatalf("got %v, want an interface-down drop", host.drops)
	}
	if r.Table().NumNeighbors() != 0 {
		t.Error("table not cleared")
	}
	if r.IsRunning() {
		t.Error("router still running")
	}
}

// The run loop beacons on the (jittered) Hello timer.
func TestHelloBeaconing(t *testing.T) {
	loc := stubLocService{}
	cfg := DefaultConfig()
	host := new(stubHost)
	clk := fakeclock.NewFakeClock(time.Unix(1000, 0))
	r := NewRouter(1, cfg, clk, host, loc, stubMobility(Position{X: 1}))

	events := make(chan *Event, 64)
	go r.Start(context.Background(), func(ev *Event) { events <- ev })
	waitEvent(t, events, EvRouterStarted)

	// a full period covers the jittered delay ([0.9,1.1] of the base)
	clk.WaitForWatcherAndIncrement(1100 * time.Millisecond)
	waitEvent(t, events, EvHelloSent)

	r.Stop()
	waitEvent(t, events, EvRouterStopped)
}

func waitEvent(t *testing.T, ch chan *Event, typ int) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return
			}
		case <-timeout:
			t.Fatalf("event %d not seen", typ)
		}
	}
}

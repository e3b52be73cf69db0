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
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/bfix/gospel/logger"
)

//----------------------------------------------------------------------
// Router: the per-node protocol engine. It beacons Hello messages,
// dispatches inbound and outbound packets through the forwarding
// engine, parks packets without a next hop in the request queue and
// drains that queue periodically.
//
// The engine is single-threaded cooperative: every public entry point
// runs to completion under one lock, so events on a node are
// linearizable in dispatch order. There is no shared state across
// nodes.
//----------------------------------------------------------------------

// Router implements the protocol engine for one node.
type Router struct {
	lock  sync.Mutex
	cfg   *Config
	self  NodeID
	clk   clock.Clock
	tbl   *PositionTable
	queue *RequestQueue
	host  Host
	loc   LocationService
	mob   Mobility

	listener  Listener
	seqNo     uint32
	helloSent bool
	active    atomic.Bool
	quit      chan struct{}
	stopOnce  sync.Once
}

// NewRouter creates a router for a node. The configuration must have
// passed Validate.
func NewRouter(self NodeID, cfg *Config, clk clock.Clock, host Host, loc LocationService, mob Mobility) *Router {
	return &Router{
		cfg:   cfg,
		self:  self,
		clk:   clk,
		tbl:   NewPositionTable(self, cfg.EntryLifetime, clk),
		queue: NewRequestQueue(cfg.MaxQueueLen, cfg.QueueTimeout, clk),
		host:  host,
		loc:   loc,
		mob:   mob,
		quit:  make(chan struct{}),
	}
}

// Self returns the address of the node.
func (r *Router) Self() NodeID {
	return r.self
}

// Table returns the neighbor position table of the node.
func (r *Router) Table() *PositionTable {
	return r.tbl
}

// Start runs the periodic tasks of the router (Hello beacons and queue
// checks) until the context is done or Stop is called.
func (r *Router) Start(ctx context.Context, notify Listener) {
	r.lock.Lock()
	r.listener = notify
	r.tbl.SetListener(notify)
	r.lock.Unlock()

	r.active.Store(true)
	r.emit(&Event{Type: EvRouterStarted, Node: r.self})
	logger.Printf(logger.INFO, "[agra] %s: router up", r.self)

	hello := r.clk.NewTimer(r.helloDelay())
	check := r.clk.NewTicker(r.cfg.HelloInterval)
	defer func() {
		hello.Stop()
		check.Stop()
		r.shutdown()
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case <-r.quit:
			return

		case <-hello.C():
			r.SendHello()
			hello.Reset(r.helloDelay())

		case <-check.C():
			r.CheckQueue()
		}
	}
}

// Stop shuts the router down: timers are cancelled, queued packets are
// reported as interface-down and the neighbor table is cleared.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

// IsRunning returns true if the router is active.
func (r *Router) IsRunning() bool {
	return r.active.Load()
}

func (r *Router) shutdown() {
	if !r.active.CompareAndSwap(true, false) {
		return
	}
	r.queue.Drain(DropInterfaceDown)
	r.tbl.Clear()
	r.emit(&Event{Type: EvRouterStopped, Node: r.self})
	logger.Printf(logger.INFO, "[agra] %s: router down", r.self)
}

// helloDelay returns the beacon period with a uniform ±10% jitter so
// that co-located nodes do not synchronize their broadcasts.
func (r *Router) helloDelay() time.Duration {
	f := 0.9 + 0.2*rand.Float64() //nolint:gosec // timing jitter only
	return time.Duration(float64(r.cfg.HelloInterval) * f)
}

//----------------------------------------------------------------------
// Hello beaconing
//----------------------------------------------------------------------

// SendHello broadcasts a beacon with the current node position.
func (r *Router) SendHello() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sendHello()
}

func (r *Router) sendHello() {
	if !r.active.Load() {
		return
	}
	msg := &HelloMsg{Origin: r.self, Pos: r.mob.SelfPosition()}
	r.seqNo++
	r.helloSent = true
	r.host.Broadcast(msg.Encode())
	r.emit(&Event{Type: EvHelloSent, Node: r.self, Val: r.seqNo})
}

// RecvHello processes a received beacon. Malformed beacons are logged
// and dropped.
func (r *Router) RecvHello(raw []byte) {
	msg, err := DecodeHello(raw)
	if err != nil {
		logger.Printf(logger.WARN, "[agra] %s: %s", r.self, err)
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.active.Load() {
		return
	}
	r.tbl.AddEntry(msg.Origin, msg.Pos)
}

//----------------------------------------------------------------------
// Outbound path
//----------------------------------------------------------------------

// RouteOutput stamps a protocol header on a packet originating at this
// node and forwards it. Packets without a viable next hop are parked
// in the request queue.
func (r *Router) RouteOutput(pkt *Packet) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.active.Load() {
		return
	}
	// beacon immediately before the first data packet so forwarding
	// can begin without waiting out the Hello timer
	if !r.helloSent {
		r.sendHello()
	}
	dstPos := r.loc.Lookup(pkt.Dst)
	if !dstPos.IsValid() {
		logger.Printf(logger.WARN, "[agra] %s: no position for %s", r.self, pkt.Dst)
		r.drop(pkt, nil, DropLocationUnknown)
		return
	}
	hdr := NewDataHeader(dstPos, pkt.Protocol)
	hdr.PrevHop = r.self

	selfPos := r.mob.SelfPosition()
	next, _ := NextHop(r.tbl, r.cfg, hdr, selfPos, selfPos)
	if next.IsZero() {
		r.deferPacket(pkt, hdr)
		return
	}
	if hdr.InPerimeter() {
		r.emit(&Event{Type: EvPerimeterEnter, Node: r.self, Val: pkt})
	}
	r.transmit(pkt, hdr, next)
}

// deferPacket parks an origin packet until the queue check finds a
// route. The packet is re-dispatched from scratch, so the header is
// reset to greedy mode first.
func (r *Router) deferPacket(pkt *Packet, hdr *DataHeader) {
	hdr.LeavePerimeter()
	hdr.PerimeterDistance = 0
	entry := &QueueEntry{
		Packet: pkt,
		Header: hdr,
		Forward: func(pkt *Packet, hdr *DataHeader, next NodeID) {
			r.transmit(pkt, hdr, next)
		},
		Error: func(pkt *Packet, hdr *DataHeader, reason DropReason) {
			r.drop(pkt, hdr, reason)
		},
	}
	if r.queue.Enqueue(entry) {
		logger.Printf(logger.DBG, "[agra] %s: queued %s", r.self, pkt)
		r.emit(&Event{Type: EvPacketQueued, Node: r.self, Ref: pkt.Dst, Val: pkt})
	}
}

//----------------------------------------------------------------------
// Inbound path
//----------------------------------------------------------------------

// RecvData processes a received data packet: deliver locally or
// forward. hdrRaw is the encoded protocol header as it arrived on the
// wire; pkt is the decapsulated host packet.
func (r *Router) RecvData(hdrRaw []byte, pkt *Packet) {
	hdr, err := DecodeDataHeader(hdrRaw)
	if err != nil {
		logger.Printf(logger.WARN, "[agra] %s: %s", r.self, err)
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.active.Load() {
		return
	}
	if pkt.Dst == r.self {
		logger.Printf(logger.DBG, "[agra] %s: delivered %s", r.self, pkt)
		r.emit(&Event{Type: EvPacketDelivered, Node: r.self, Ref: pkt.Src, Val: pkt})
		r.host.LocalDeliver(pkt, hdr)
		return
	}
	r.forwardTransit(pkt, hdr)
}

// forwardTransit re-runs the forwarding engine for a packet in
// transit. Transit traffic is never queued: a failed decision drops
// the packet.
func (r *Router) forwardTransit(pkt *Packet, hdr *DataHeader) {
	selfPos := r.mob.SelfPosition()

	// a perimeter packet that has made progress past its entry
	// distance returns to greedy forwarding
	if hdr.InPerimeter() && selfPos.Distance(hdr.DstPos) < hdr.PerimeterDistance {
		hdr.LeavePerimeter()
		r.emit(&Event{Type: EvPerimeterExit, Node: r.self, Val: pkt})
	}
	wasPerimeter := hdr.InPerimeter()
	next, _ := NextHop(r.tbl, r.cfg, hdr, selfPos, r.prevHopPos(hdr, selfPos))
	if next.IsZero() {
		r.drop(pkt, hdr, DropNoRoute)
		return
	}
	if !wasPerimeter && hdr.InPerimeter() {
		r.emit(&Event{Type: EvPerimeterEnter, Node: r.self, Val: pkt})
	}
	r.transmit(pkt, hdr, next)
}

// prevHopPos resolves the position of the node the packet came from:
// from the neighbor table if it is still one, from the location
// service otherwise. The node's own position is the last resort (the
// perimeter rule then degrades to its first-entry fallback).
func (r *Router) prevHopPos(hdr *DataHeader, selfPos Position) Position {
	if hdr.PrevHop.IsZero() || hdr.PrevHop == r.self {
		return selfPos
	}
	if pos, ok := r.tbl.Position(hdr.PrevHop); ok {
		return pos
	}
	if pos := r.loc.Lookup(hdr.PrevHop); pos.IsValid() {
		return pos
	}
	return selfPos
}

//----------------------------------------------------------------------
// Transmission, drops, queue drain
//----------------------------------------------------------------------

func (r *Router) transmit(pkt *Packet, hdr *DataHeader, next NodeID) {
	hdr.PrevHop = r.self
	logger.Printf(logger.DBG, "[agra] %s: forward %s via %s", r.self, pkt, next)
	r.emit(&Event{Type: EvPacketForwarded, Node: r.self, Ref: next, Val: pkt})
	r.host.UnicastForward(pkt, hdr, next)
}

func (r *Router) drop(pkt *Packet, hdr *DataHeader, reason DropReason) {
	logger.Printf(logger.DBG, "[agra] %s: drop %s: %s", r.self, pkt, reason)
	r.emit(&Event{Type: EvPacketDropped, Node: r.self, Val: pkt})
	r.host.Error(pkt, hdr, reason)
}

// CheckQueue retries every queued packet. Called on the queue-check
// tick (one Hello period).
func (r *Router) CheckQueue() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.active.Load() {
		return
	}
	if r.queue.Size() == 0 {
		return
	}
	selfPos := r.mob.SelfPosition()
	for _, dst := range r.queue.Destinations() {
		// the destination may have become unresolvable since the
		// packets were queued
		dstPos := r.loc.Lookup(dst)
		if !dstPos.IsValid() {
			r.queue.DropPacketsWithDst(dst)
			continue
		}
		head, ok := r.queue.Head(dst)
		if !ok {
			continue
		}
		head.Header.DstPos = dstPos
		// peek first: a destination without a next hop keeps its
		// packets queued without resetting their deadlines
		next, _ := NextHop(r.tbl, r.cfg, head.Header, selfPos, selfPos)
		if next.IsZero() {
			head.Header.LeavePerimeter()
			continue
		}
		for {
			e, ok := r.queue.Dequeue(dst)
			if !ok {
				break
			}
			e.Forward(e.Packet, e.Header, next)
		}
	}
}

// NotifyTxError handles a link-layer transmission failure: the
// neighbor is presumed gone and removed, and the failed packet is
// re-submitted to forwarding over the remaining table. No per-packet
// retry count is kept: every TX error re-runs forwarding, and the
// packet is terminated with no-route only when no next hop remains.
func (r *Router) NotifyTxError(neighbor NodeID, pkt *Packet, hdr *DataHeader) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.active.Load() {
		return
	}
	logger.Printf(logger.DBG, "[agra] %s: TX error towards %s", r.self, neighbor)
	r.tbl.DeleteEntry(neighbor)
	r.emit(&Event{Type: EvNeighborLost, Node: r.self, Ref: neighbor})
	if pkt == nil || hdr == nil {
		return
	}
	selfPos := r.mob.SelfPosition()
	next, _ := NextHop(r.tbl, r.cfg, hdr, selfPos, r.prevHopPos(hdr, selfPos))
	if next.IsZero() {
		r.drop(pkt, hdr, DropNoRoute)
		return
	}
	r.transmit(pkt, hdr, next)
}

func (r *Router) emit(ev *Event) {
	if r.listener != nil {
		r.listener(ev)
	}
}

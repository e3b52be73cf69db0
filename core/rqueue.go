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
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/bfix/gospel/logger"
)

//----------------------------------------------------------------------
// Request queue: packets without a viable next hop wait here until the
// periodic queue check finds one or their deadline passes. The queue is
// a bounded FIFO; overflow evicts the oldest entry.
//----------------------------------------------------------------------

// ForwardFunc transmits a deferred packet once a next hop is known.
type ForwardFunc func(pkt *Packet, hdr *DataHeader, next NodeID)

// ErrorFunc terminates a deferred packet.
type ErrorFunc func(pkt *Packet, hdr *DataHeader, reason DropReason)

// QueueEntry is one deferred packet with its callbacks.
type QueueEntry struct {
	Packet   *Packet
	Header   *DataHeader
	Forward  ForwardFunc
	Error    ErrorFunc
	deadline time.Time
}

// equal compares entries structurally: same packet, same destination,
// same deadline.
func (e *QueueEntry) equal(o *QueueEntry) bool {
	return e.Packet == o.Packet &&
		e.Packet.Dst == o.Packet.Dst &&
		e.deadline.Equal(o.deadline)
}

// RequestQueue is the bounded deferred-packet FIFO of a router.
type RequestQueue struct {
	sync.Mutex
	clk     clock.Clock
	list    []*QueueEntry
	maxLen  int
	timeout time.Duration
}

// NewRequestQueue creates an empty queue holding at most maxLen
// packets for at most 'timeout' each.
func NewRequestQueue(maxLen int, timeout time.Duration, clk clock.Clock) *RequestQueue {
	return &RequestQueue{
		clk:     clk,
		list:    make([]*QueueEntry, 0, maxLen),
		maxLen:  maxLen,
		timeout: timeout,
	}
}

// Enqueue appends an entry unless an equal one is already queued.
// A full queue drops its oldest entry first. Returns true if the entry
// was admitted.
func (q *RequestQueue) Enqueue(e *QueueEntry) bool {
	q.Lock()
	defer q.Unlock()
	q.purge()

	e.deadline = q.clk.Now().Add(q.timeout)
	for _, o := range q.list {
		if o.equal(e) {
			return false
		}
	}
	if len(q.list) == q.maxLen {
		drop := q.list[0]
		q.list = q.list[1:]
		q.report(drop, DropQueueOverflow)
	}
	q.list = append(q.list, e)
	return true
}

// Dequeue removes and returns the earliest entry for the destination.
func (q *RequestQueue) Dequeue(dst NodeID) (*QueueEntry, bool) {
	q.Lock()
	defer q.Unlock()
	q.purge()

	for i, e := range q.list {
		if e.Packet.Dst == dst {
			q.list = append(q.list[:i], q.list[i+1:]...)
			return e, true
		}
	}
	return nil, false
}

// Head returns the earliest entry for the destination without removing
// it. The queue check peeks before it commits to a transmission.
func (q *RequestQueue) Head(dst NodeID) (*QueueEntry, bool) {
	q.Lock()
	defer q.Unlock()
	for _, e := range q.list {
		if e.Packet.Dst == dst {
			return e, true
		}
	}
	return nil, false
}

// DropPacketsWithDst removes all entries for the destination, each
// reported as route-unavailable.
func (q *RequestQueue) DropPacketsWithDst(dst NodeID) {
	q.Lock()
	defer q.Unlock()

	kept := q.list[:0]
	for _, e := range q.list {
		if e.Packet.Dst == dst {
			q.report(e, DropRouteUnavailable)
			continue
		}
		kept = append(kept, e)
	}
	q.list = kept
}

// Find returns true if a packet for the destination is queued.
func (q *RequestQueue) Find(dst NodeID) bool {
	q.Lock()
	defer q.Unlock()
	for _, e := range q.list {
		if e.Packet.Dst == dst {
			return true
		}
	}
	return false
}

// Destinations returns the distinct destinations currently queued,
// in queue order.
func (q *RequestQueue) Destinations() []NodeID {
	q.Lock()
	defer q.Unlock()

	seen := make(map[NodeID]struct{})
	var list []NodeID
	for _, e := range q.list {
		if _, ok := seen[e.Packet.Dst]; !ok {
			seen[e.Packet.Dst] = struct{}{}
			list = append(list, e.Packet.Dst)
		}
	}
	return list
}

// Size returns the number of queued packets after expiry.
func (q *RequestQueue) Size() int {
	q.Lock()
	defer q.Unlock()
	q.purge()
	return len(q.list)
}

// Drain empties the queue, reporting every entry with the given reason
// (interface-down on shutdown).
func (q *RequestQueue) Drain(reason DropReason) {
	q.Lock()
	defer q.Unlock()
	for _, e := range q.list {
		q.report(e, reason)
	}
	q.list = q.list[:0]
}

// purge evicts expired entries; callers hold the lock.
func (q *RequestQueue) purge() {
	now := q.clk.Now()
	kept := q.list[:0]
	for _, e := range q.list {
		if !e.deadline.After(now) {
			q.report(e, DropQueueTimeout)
			continue
		}
		kept = append(kept, e)
	}
	q.list = kept
}

func (q *RequestQueue) report(e *QueueEntry, reason DropReason) {
	logger.Printf(logger.DBG, "[rqueue] drop %s: %s", e.Packet, reason)
	if e.Error != nil {
		e.Error(e.Packet, e.Header, reason)
	}
}

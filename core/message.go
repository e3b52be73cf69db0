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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

//----------------------------------------------------------------------
// Wire format: all integers big-endian, floats IEEE-754 big-endian.
// Each message starts with a one-byte type; lengths are fixed per type.
//----------------------------------------------------------------------

// Message types
const (
	MsgHello uint8 = 1 // broadcast beacon
	MsgData  uint8 = 2 // data packet protocol header
)

// Fixed encoded sizes
const (
	HelloSize      = 29 // type + origin + 3 coordinates
	DataHeaderSize = 39 // type + 3 coords + flags + distance + prevhop + proto
)

// Header flag bits
const (
	FlagPerimeter uint8 = 0x01 // packet is in perimeter mode
)

// Decode errors
var (
	ErrMsgTruncated = errors.New("message truncated")
	ErrMsgType      = errors.New("unexpected message type")
)

//----------------------------------------------------------------------

// HelloMsg is the periodic broadcast beacon carrying the sender's
// address and geographic position.
type HelloMsg struct {
	Origin NodeID
	Pos    Position
}

// Encode returns the binary representation of the beacon.
func (m *HelloMsg) Encode() []byte {
	buf := make([]byte, HelloSize)
	buf[0] = MsgHello
	binary.BigEndian.PutUint32(buf[1:], uint32(m.Origin))
	putFloat(buf[5:], m.Pos.X)
	putFloat(buf[13:], m.Pos.Y)
	putFloat(buf[21:], m.Pos.Z)
	return buf
}

// DecodeHello parses a beacon from its binary representation.
func DecodeHello(buf []byte) (*HelloMsg, error) {
	if len(buf) < HelloSize {
		return nil, fmt.Errorf("hello: %w (%d bytes)", ErrMsgTruncated, len(buf))
	}
	if buf[0] != MsgHello {
		return nil, fmt.Errorf("hello: %w (0x%02x)", ErrMsgType, buf[0])
	}
	return &HelloMsg{
		Origin: NodeID(binary.BigEndian.Uint32(buf[1:])),
		Pos: Position{
			X: getFloat(buf[5:]),
			Y: getFloat(buf[13:]),
			Z: getFloat(buf[21:]),
		},
	}, nil
}

// String returns a human-readable representation.
func (m *HelloMsg) String() string {
	return fmt.Sprintf("Hello{%s @ %s}", m.Origin, m.Pos)
}

//----------------------------------------------------------------------

// DataHeader is the protocol header stamped on a data packet at the
// first hop and stripped at the destination. It carries everything an
// intermediate forwarder needs: the destination position snapshot, the
// per-packet mode state and the previous hop.
type DataHeader struct {
	DstPos            Position // destination position snapshot
	Flags             uint8    // mode flags (FlagPerimeter)
	PerimeterDistance float64  // distance-to-dst at perimeter entry
	PrevHop           NodeID   // updated at each forwarder
	Protocol          uint8    // upper-layer protocol carried
}

// NewDataHeader creates a header for an outbound packet in greedy mode.
func NewDataHeader(dst Position, proto uint8) *DataHeader {
	return &DataHeader{
		DstPos:   dst,
		Protocol: proto,
	}
}

// InPerimeter returns true if the packet is in perimeter mode.
func (h *DataHeader) InPerimeter() bool {
	return h.Flags&FlagPerimeter != 0
}

// EnterPerimeter flags the packet and records the distance to the
// destination at the point of entry.
func (h *DataHeader) EnterPerimeter(dist float64) {
	h.Flags |= FlagPerimeter
	h.PerimeterDistance = dist
}

// LeavePerimeter clears the mode flag; the recorded entry distance is
// meaningless from now on.
func (h *DataHeader) LeavePerimeter() {
	h.Flags &^= FlagPerimeter
}

// Encode returns the binary representation of the header.
func (h *DataHeader) Encode() []byte {
	buf := make([]byte, DataHeaderSize)
	buf[0] = MsgData
	putFloat(buf[1:], h.DstPos.X)
	putFloat(buf[9:], h.DstPos.Y)
	putFloat(buf[17:], h.DstPos.Z)
	buf[25] = h.Flags
	putFloat(buf[26:], h.PerimeterDistance)
	binary.BigEndian.PutUint32(buf[34:], uint32(h.PrevHop))
	buf[38] = h.Protocol
	return buf
}

// DecodeDataHeader parses a protocol header from its binary
// representation.
func DecodeDataHeader(buf []byte) (*DataHeader, error) {
	if len(buf) < DataHeaderSize {
		return nil, fmt.Errorf("data header: %w (%d bytes)", ErrMsgTruncated, len(buf))
	}
	if buf[0] != MsgData {
		return nil, fmt.Errorf("data header: %w (0x%02x)", ErrMsgType, buf[0])
	}
	return &DataHeader{
		DstPos: Position{
			X: getFloat(buf[1:]),
			Y: getFloat(buf[9:]),
			Z: getFloat(buf[17:]),
		},
		Flags:             buf[25],
		PerimeterDistance: getFloat(buf[26:]),
		PrevHop:           NodeID(binary.BigEndian.Uint32(buf[34:])),
		Protocol:          buf[38],
	}, nil
}

// String returns a human-readable representation.
func (h *DataHeader) String() string {
	mode := "greedy"
	if h.InPerimeter() {
		mode = fmt.Sprintf("perimeter(%.2f)", h.PerimeterDistance)
	}
	return fmt.Sprintf("Data{dst=%s,%s,prev=%s}", h.DstPos, mode, h.PrevHop)
}

//----------------------------------------------------------------------

func putFloat(buf []byte, v float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
}

func getFloat(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}

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
	"errors"
	"time"
)

// Config holds the tunables of a single router instance.
//
// EntryLifetime must be tuned against HelloInterval and node mobility:
// a neighbor that missed two consecutive beacons is presumed gone.
type Config struct {
	HelloInterval time.Duration // period of Hello beacons
	EntryLifetime time.Duration // neighbor expiry without beacons
	MaxQueueLen   int           // max. number of deferred packets
	QueueTimeout  time.Duration // lifetime of a deferred packet
	PerimeterMode bool          // recovery on the planar subgraph
	RepulsionMode bool          // electrostatic greedy variant
	HoleCenter    Position      // center of the known hole
	HoleRadius    float64       // effective radius of the hole charge
}

// DefaultConfig returns the standard settings.
func DefaultConfig() *Config {
	hello := time.Second
	return &Config{
		HelloInterval: hello,
		EntryLifetime: 5 * hello / 2,
		MaxQueueLen:   64,
		QueueTimeout:  30 * time.Second,
		PerimeterMode: true,
		RepulsionMode: false,
	}
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.HelloInterval <= 0 {
		return errors.New("config: hello interval must be positive")
	}
	if c.EntryLifetime <= 0 {
		c.EntryLifetime = 5 * c.HelloInterval / 2
	}
	if c.MaxQueueLen <= 0 {
		return errors.New("config: queue length must be positive")
	}
	if c.QueueTimeout <= 0 {
		return errors.New("config: queue timeout must be positive")
	}
	if c.RepulsionMode {
		if c.HoleRadius <= 0 {
			return errors.New("config: repulsion mode requires a hole radius")
		}
		if !c.HoleCenter.IsValid() {
			return errors.New("config: repulsion mode requires a hole center")
		}
	}
	return nil
}

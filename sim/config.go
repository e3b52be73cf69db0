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
	"encoding/json"
	"math"
	"os"
	"time"

	"agra/core"
)

// WallDef definition in environment
type WallDef struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
	F  float64 `json:"f"`
}

// HoleDef is a circular obstacle in the environment
type HoleDef struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// EnvironCfg holds configuration data for the environment
type EnvironCfg struct {
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	NumNodes int        `json:"numNodes"`
	Reach2   float64    `json:"reach2"`
	Hole     *HoleDef   `json:"hole"`
	Walls    []*WallDef `json:"walls"`
}

// Reach returns the broadcast radius of nodes.
func (c *EnvironCfg) Reach() float64 {
	return math.Sqrt(c.Reach2)
}

// Build the environment model from the configuration.
func (c *EnvironCfg) Build() Environment {
	switch {
	case c.Hole != nil:
		return NewHoleModel(core.Position{X: c.Hole.X, Y: c.Hole.Y}, c.Hole.R)
	case len(c.Walls) > 0:
		m := NewWallModel()
		for _, w := range c.Walls {
			m.Add(core.Position{X: w.X1, Y: w.Y1}, core.Position{X: w.X2, Y: w.Y2}, w.F)
		}
		return m
	default:
		return NewOpenModel()
	}
}

// RouterCfg holds configuration data for the per-node routers
// (times in seconds).
type RouterCfg struct {
	HelloIntv     float64  `json:"helloIntv"`
	EntryLifetime float64  `json:"entryLifetime"`
	MaxQueueLen   int      `json:"maxQueueLen"`
	QueueTimeout  float64  `json:"queueTimeout"`
	Perimeter     bool     `json:"perimeter"`
	Repulsion     bool     `json:"repulsion"`
	HoleCharge    *HoleDef `json:"holeCharge"`
}

// ToCore converts the section into a router configuration.
func (c *RouterCfg) ToCore() *core.Config {
	out := core.DefaultConfig()
	if c.HelloIntv > 0 {
		out.HelloInterval = time.Duration(c.HelloIntv * float64(time.Second))
		out.EntryLifetime = 5 * out.HelloInterval / 2
	}
	if c.EntryLifetime > 0 {
		out.EntryLifetime = time.Duration(c.EntryLifetime * float64(time.Second))
	}
	if c.MaxQueueLen > 0 {
		out.MaxQueueLen = c.MaxQueueLen
	}
	if c.QueueTimeout > 0 {
		out.QueueTimeout = time.Duration(c.QueueTimeout * float64(time.Second))
	}
	out.PerimeterMode = c.Perimeter
	out.RepulsionMode = c.Repulsion
	if c.HoleCharge != nil {
		out.HoleCenter = core.Position{X: c.HoleCharge.X, Y: c.HoleCharge.Y}
		out.HoleRadius = c.HoleCharge.R
	}
	return out
}

// TrafficCfg describes the generated test traffic.
type TrafficCfg struct {
	Packets     int     `json:"packets"`
	PayloadSize int     `json:"payloadSize"`
	Delay       float64 `json:"delay"` // seconds between injections
}

// RenderCfg options
type RenderCfg struct {
	Mode string `json:"mode"`
	File string `json:"file"`
}

// Option for control flags/values
type Option struct {
	RunTime  float64 `json:"runTime"`  // total simulation time (s)
	SettleIn float64 `json:"settleIn"` // beacon settle time (s)
}

// Config for test configuration data
type Config struct {
	Env     *EnvironCfg `json:"environment"`
	Router  *RouterCfg  `json:"router"`
	Traffic *TrafficCfg `json:"traffic"`
	Options *Option     `json:"options"`
	Render  *RenderCfg  `json:"render"`
}

// Cfg is the global configuration
var Cfg = &Config{
	Env: &EnvironCfg{
		Width:    100.,
		Height:   100.,
		NumNodes: 60,
		Reach2:   500.,
	},
	Router: &RouterCfg{
		HelloIntv:    1.,
		MaxQueueLen:  64,
		QueueTimeout: 30.,
		Perimeter:    true,
		Repulsion:    false,
	},
	Traffic: &TrafficCfg{
		Packets:     100,
		PayloadSize: 64,
		Delay:       0.05,
	},
	Options: &Option{
		RunTime:  30.,
		SettleIn: 3.,
	},
	Render: &RenderCfg{
		Mode: "none",
		File: "",
	},
}

//----------------------------------------------------------------------

// ReadConfig to deserialize a configuration from a JSON file
func ReadConfig(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &Cfg)
}

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

package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agra/core"
	"agra/sim"
)

func main() {
	var (
		cfgFile   string
		repulsion bool
		render    string
	)
	flag.StringVar(&cfgFile, "c", "", "configuration file (JSON)")
	flag.BoolVar(&repulsion, "r", false, "enable electrostatic repulsion")
	flag.StringVar(&render, "o", "", "render result to SVG file")
	flag.Parse()

	if len(cfgFile) > 0 {
		if err := sim.ReadConfig(cfgFile); err != nil {
			log.Fatal(err)
		}
	}
	if repulsion {
		sim.Cfg.Router.Repulsion = true
	}
	if len(render) > 0 {
		sim.Cfg.Render.Mode = "svg"
		sim.Cfg.Render.File = render
	}
	// the repulsion charge defaults to the physical hole
	if sim.Cfg.Router.Repulsion && sim.Cfg.Router.HoleCharge == nil && sim.Cfg.Env.Hole != nil {
		h := *sim.Cfg.Env.Hole
		h.R *= 1.41421356 // effective charge radius of the disc
		sim.Cfg.Router.HoleCharge = &h
	}
	rand.Seed(19031962) //nolint:gosec // reproducible runs

	log.Println("Building network...")
	env := sim.Cfg.Env.Build()
	netw := sim.NewNetwork(env)
	cfg := sim.Cfg.Router.ToCore()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	placeNodes(netw, cfg)

	log.Println("Running network...")
	ctx, cancel := context.WithCancel(context.Background())
	go netw.Run(ctx, nil)

	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// let the beacons settle, then inject traffic between random pairs
	time.Sleep(time.Duration(sim.Cfg.Options.SettleIn * float64(time.Second)))
	log.Println("Sending traffic...")
	nodes := netw.Nodes()
	payload := make([]byte, sim.Cfg.Traffic.PayloadSize)
	delay := time.Duration(sim.Cfg.Traffic.Delay * float64(time.Second))

	deadline := time.NewTimer(time.Duration(sim.Cfg.Options.RunTime * float64(time.Second)))
	tick := time.NewTicker(10 * time.Second)
	sent := 0
loop:
	for sent < sim.Cfg.Traffic.Packets {
		from := nodes[rand.Intn(len(nodes))] //nolint:gosec // simulation
		to := nodes[rand.Intn(len(nodes))]   //nolint:gosec // simulation
		if from.ID() == to.ID() {
			continue
		}
		netw.Send(from.ID(), to.ID(), 17, payload)
		sent++

		select {
		case <-time.After(delay):
		case t := <-tick.C:
			logStatus(netw, t)
		case <-deadline.C:
			break loop
		case <-sigCh:
			break loop
		}
	}
	// drain: give deferred packets a chance to flush
	select {
	case <-deadline.C:
	case <-sigCh:
	case <-time.After(5 * time.Second):
	}

	netw.Stop()
	cancel()
	log.Println("Simulation complete.")
	logStatus(netw, time.Now())

	trafIn, trafOut := netw.Traffic()
	n := float64(len(nodes))
	log.Printf("Avg. traffic per node: %.1f bytes in / %.1f bytes out",
		float64(trafIn)/n, float64(trafOut)/n)

	if sim.Cfg.Render.Mode != "none" {
		c := sim.GetCanvas(sim.Cfg.Render)
		if c != nil {
			c.Open()
			c.Start()
			netw.Render(c)
			c.End()
			c.Close()
		}
	}
	log.Println("Done")
}

// placeNodes scatters nodes over the field, keeping the hole (if any)
// empty. The node at index i gets address i+1 (zero is reserved).
func placeNodes(netw *sim.Network, cfg *core.Config) {
	hole, _ := sim.Cfg.Env.Build().(*sim.HoleModel)
	for i := 0; i < sim.Cfg.Env.NumNodes; i++ {
		var pos core.Position
		for {
			pos = core.Position{
				X: rand.Float64() * sim.Cfg.Env.Width,  //nolint:gosec // simulation
				Y: rand.Float64() * sim.Cfg.Env.Height, //nolint:gosec // simulation
			}
			if hole == nil || !hole.Contains(pos) {
				break
			}
		}
		netw.AddNode(core.NodeID(i+1), pos, sim.Cfg.Env.Reach2, cfg)
	}
}

func logStatus(netw *sim.Network, t time.Time) {
	delivered, dropped, pending, hops, byReason := netw.Tracer().Status()
	avg := 0.0
	if delivered > 0 {
		avg = float64(hops) / float64(delivered)
	}
	log.Printf("%s: delivered=%d (%.2f hops avg), dropped=%d, pending=%d",
		t.Format(time.RFC1123), delivered, avg, dropped, pending)
	for reason, cnt := range byReason {
		log.Printf("  * %s: %d", reason, cnt)
	}
}

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
	"fmt"
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/tfriedel6/canvas"
	"github.com/tfriedel6/canvas/sdlcanvas"
)

//----------------------------------------------------------------------
// SDL canvas: dynamic rendering into a window. Draw calls between
// Start and End are collected as a display list; the window loop
// replays the last completed list each frame.
//----------------------------------------------------------------------

// SDLCanvas for dynamic (animated) rendering
type SDLCanvas struct {
	lock  sync.Mutex
	w, h  float64
	scale float64
	ops   []func(cv *canvas.Canvas) // frame under construction
	frame []func(cv *canvas.Canvas) // last completed frame
	wnd   *sdlcanvas.Window
	cv    *canvas.Canvas
}

// NewSDLCanvas creates a window canvas for a field of the given size.
func NewSDLCanvas(w, h float64) *SDLCanvas {
	return &SDLCanvas{
		w:     w,
		h:     h,
		scale: 10.,
	}
}

// Open a canvas (prepare resources)
func (c *SDLCanvas) Open() {
	var err error
	c.wnd, c.cv, err = sdlcanvas.CreateWindow(int(c.w*c.scale), int(c.h*c.scale), "agra-sim")
	if err != nil {
		log.Fatal(err)
	}
	go c.wnd.MainLoop(func() {
		cv := c.cv
		cv.SetFillStyle("#ffffff")
		cv.FillRect(0, 0, float64(cv.Width()), float64(cv.Height()))
		c.lock.Lock()
		frame := c.frame
		c.lock.Unlock()
		for _, op := range frame {
			op(cv)
		}
	})
}

// IsDynamic returns true if the canvas can draw a
// sequence of renderings (like UI or video canvases)
func (c *SDLCanvas) IsDynamic() bool {
	return true
}

// Start a new rendering
func (c *SDLCanvas) Start() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.ops = nil
}

// Circle primitive
func (c *SDLCanvas) Circle(x, y, r, w float64, clrBorder, clrFill *color.RGBA) {
	s := c.scale
	c.add(func(cv *canvas.Canvas) {
		cv.BeginPath()
		cv.Arc(x*s, y*s, r*s, 0, 2*math.Pi, false)
		cv.ClosePath()
		if clrFill != nil {
			cv.SetFillStyle(htmlColor(clrFill))
			cv.Fill()
		}
		if w > 0 && clrBorder != nil {
			cv.SetStrokeStyle(htmlColor(clrBorder))
			cv.SetLineWidth(w * s)
			cv.Stroke()
		}
	})
}

// Text primitive (no font asset is shipped; text is skipped on the
// dynamic canvas).
func (c *SDLCanvas) Text(x, y, fs float64, str, anchor string) {}

// Line primitive
func (c *SDLCanvas) Line(x1, y1, x2, y2, w float64, clr *color.RGBA) {
	s := c.scale
	c.add(func(cv *canvas.Canvas) {
		cv.BeginPath()
		cv.MoveTo(x1*s, y1*s)
		cv.LineTo(x2*s, y2*s)
		if w > 0 && clr != nil {
			cv.SetStrokeStyle(htmlColor(clr))
			cv.SetLineWidth(w * s)
		}
		cv.Stroke()
	})
}

// End the current rendering (swap display list)
func (c *SDLCanvas) End() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.frame = c.ops
	c.ops = nil
}

// Close a canvas. No further operations are allowed
func (c *SDLCanvas) Close() {
	if c.wnd != nil {
		c.wnd.Destroy()
	}
}

func (c *SDLCanvas) add(op func(cv *canvas.Canvas)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.ops = append(c.ops, op)
}

func htmlColor(clr *color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", clr.R, clr.G, clr.B)
}

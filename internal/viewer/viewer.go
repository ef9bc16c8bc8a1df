// Package viewer renders the per-byte value distributions of a breathing analyser
package viewer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gdamore/tcell/v2"

	"github.com/psychicsniffle/sniffle/internal/tracker"
)

// ErrQuit is returned by Run when the user closes the viewer
var ErrQuit = errors.New("viewer closed by user")

// Glyph maps a histogram bucket onto 'A' (empty) through 'Z' (saturated)
func Glyph(v uint8) rune {
	return 'A' + rune(25*int(v)/255)
}

// Dump writes one line of glyphs per byte offset followed by a blank line
func Dump(w io.Writer, hists []tracker.Histogram) error {
	bw := bufio.NewWriter(w)
	for _, h := range hists {
		for _, v := range h {
			bw.WriteRune(Glyph(v))
		}
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// Status is the headline shown above the histograms
type Status struct {
	Label      string
	Generation int
	Best       float64
	Contrast   float64
}

func (s Status) String() string {
	return fmt.Sprintf("%s  gen %d  best %.6g  contrast %.3f  [esc to quit]", s.Label, s.Generation, s.Best, s.Contrast)
}

// Frame is one redraw request
type Frame struct {
	Status     Status
	Histograms []tracker.Histogram
}

// Viewer draws frames onto a tcell screen. The caller owns the screen lifecycle.
type Viewer struct {
	screen tcell.Screen
	status tcell.Style
}

func New(screen tcell.Screen) *Viewer {
	return &Viewer{
		screen: screen,
		status: tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true),
	}
}

// Draw renders a frame: the status on row 0 and one row per byte offset below it.
// Rows and columns that do not fit the screen are cut off.
func (v *Viewer) Draw(f Frame) {
	width, height := v.screen.Size()
	v.screen.Clear()

	for x, r := range []rune(f.Status.String()) {
		if x >= width {
			break
		}
		v.screen.SetContent(x, 0, r, nil, v.status)
	}

	for ss, h := range f.Histograms {
		y := ss + 1
		if y >= height {
			break
		}
		for b, n := range h {
			if b >= width {
				break
			}
			shade := int32(64 + 191*int(n)/255)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(shade, shade, shade))
			v.screen.SetContent(b, y, Glyph(n), nil, style)
		}
	}

	v.screen.Show()
}

// Run draws every frame received until frames is closed, ctx ends or the user
// presses Esc, Ctrl-C or q. The latter returns ErrQuit.
func (v *Viewer) Run(ctx context.Context, frames <-chan Frame) error {
	events := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	var last Frame
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-frames:
			if !ok {
				return nil
			}
			last = f
			v.Draw(f)

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return ErrQuit
				}
			case *tcell.EventResize:
				v.screen.Sync()
				v.Draw(last)
			}
		}
	}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/fossabot/launcher-2/internal/progress"
)

// progressBar renders a fixed-width ASCII bar
type progressBar struct {
	Width, Min, Max                   int
	Start, Done, Active, Pending, End byte
}

// newProgressBar sizes the bar to w when it is a terminal. The second
// result reports whether it is.
func newProgressBar(w io.Writer) (*progressBar, bool) {
	width := 0
	tty := false
	if wFd, ok := w.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(wFd.Fd())) {
		tty = true
		if tw, _, err := term.GetSize(int(wFd.Fd())); err == nil {
			width = tw
		}
	}

	return &progressBar{
		Width:   width,
		Min:     10,
		Max:     40,
		Start:   '[',
		Done:    '=',
		Active:  '>',
		Pending: ' ',
		End:     ']',
	}, tty
}

// generate returns pre, the bar filled to pct, and post on one line
func (p *progressBar) generate(pct float64, pre, post string) string {
	pct = progress.Clamp(pct)
	curWidth := p.Width - (len(pre) + len(post) + 2)
	curWidth = min(max(curWidth, p.Min), p.Max)
	buf := make([]byte, curWidth)

	doneLen := int(float64(curWidth) * pct)
	for i := range doneLen {
		buf[i] = p.Done
	}
	if doneLen < curWidth {
		buf[doneLen] = p.Active
	}
	for i := doneLen + 1; i < curWidth; i++ {
		buf[i] = p.Pending
	}
	return fmt.Sprintf("%s%c%s%c%s", pre, p.Start, buf, p.End, post)
}

// console is the foreground progress.Sink. On a terminal it redraws a
// single status line with a bar; otherwise it prints each new status once.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	bar      *progressBar
	tty      bool
	status   string
	fraction float64
	drawn    bool
}

func newConsole(out io.Writer) *console {
	bar, tty := newProgressBar(out)
	return &console{out: out, bar: bar, tty: tty}
}

func (c *console) SetStatus(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.status {
		return
	}
	c.status = text
	if !c.tty {
		fmt.Fprintln(c.out, text)
		return
	}
	c.draw()
}

func (c *console) SetProgress(fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fraction = progress.Clamp(fraction)
	if c.tty {
		c.draw()
	}
}

func (c *console) AddProgress(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fraction = progress.Clamp(c.fraction + delta)
	if c.tty {
		c.draw()
	}
}

// Finish ends the redrawn line so later output starts on a fresh one
func (c *console) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drawn {
		fmt.Fprintln(c.out)
		c.drawn = false
	}
}

func (c *console) draw() {
	post := fmt.Sprintf(" %3.0f%%", c.fraction*100)
	line := c.bar.generate(c.fraction, strings.TrimSpace(c.status)+" ", post)
	// Carriage return and clear to end of line
	fmt.Fprintf(c.out, "\r%s\x1b[K", line)
	c.drawn = true
}

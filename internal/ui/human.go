package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// humanPresenter prints one line per item when verbose, periodic progress
// to stderr otherwise, and a compact summary at the end.
type humanPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	quiet   bool
	verbose bool
	isTTY   bool
}

func (p *humanPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			if !p.quiet && !p.verbose && p.isTTY {
				p.printProgress()
			}
		}
	}
}

func (p *humanPresenter) handleEvent(ev event.Event) {
	if p.quiet {
		return
	}

	switch ev.Type {
	case event.PlanItem:
		if ev.Action == event.ActionFail {
			fmt.Fprintf(p.w, "plan %-9s %s -> %s (%s)\n", ev.Action, ev.Src, ev.Dst, ev.ErrorCode)
		} else {
			fmt.Fprintf(p.w, "plan %-9s %s -> %s\n", ev.Action, ev.Src, ev.Dst)
		}
	case event.ExecuteItem:
		if !p.verbose && ev.Action != event.ActionFail {
			return
		}
		switch ev.Action {
		case event.ActionFail:
			fmt.Fprintf(p.errW, "failed %s -> %s (%s)\n", ev.Src, ev.Dst, ev.ErrorCode)
		case event.ActionSkip:
			fmt.Fprintf(p.w, "skipped %s\n", ev.Dst)
		default:
			fmt.Fprintf(p.w, "%s %s -> %s (%s)\n", ev.Action, ev.Src, ev.Dst, FormatBytes(ev.Bytes))
		}
	}
}

func (p *humanPresenter) printProgress() {
	snap := p.stats.Snapshot()
	speed := p.stats.RollingSpeed(10)
	fmt.Fprintf(p.errW, "\r%d files, %s (%s)   ",
		snap.FilesCopied, FormatBytes(snap.BytesCopied), FormatRate(speed))
}

func (p *humanPresenter) Summary() string {
	if p.quiet {
		return ""
	}

	snap := p.stats.Snapshot()
	if snap.FilesCopied == 0 && snap.SymlinksCopied == 0 && snap.DirsCreated == 0 {
		if snap.FilesSkipped > 0 {
			return fmt.Sprintf("nothing to copy (%d items already exist)", snap.FilesSkipped)
		}
		return "nothing to copy"
	}

	var parts []string
	if snap.FilesCopied > 0 {
		parts = append(parts, fmt.Sprintf("%d files", snap.FilesCopied))
	}
	if snap.SymlinksCopied > 0 {
		parts = append(parts, fmt.Sprintf("%d symlinks", snap.SymlinksCopied))
	}
	if snap.DirsCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d dirs", snap.DirsCreated))
	}

	line := fmt.Sprintf("copied %s (%s) in %s",
		strings.Join(parts, ", "), FormatBytes(snap.BytesCopied), snap.Elapsed.Round(time.Millisecond))
	if snap.FilesSkipped > 0 {
		line += fmt.Sprintf(", %d skipped", snap.FilesSkipped)
	}
	if snap.Errors > 0 {
		line += fmt.Sprintf(", %d errors", snap.Errors)
	}
	return line
}

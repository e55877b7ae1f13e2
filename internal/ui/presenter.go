// Package ui renders engine events for humans and machines.
package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line ("" to suppress).
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	Output    string // "human" | "json" | "jsonl"
	Quiet     bool
	Verbose   bool
	IsTTY     bool
}

// NewPresenter creates the presenter for the selected output format.
//
//nolint:ireturn // factory returns interface by design
func NewPresenter(cfg Config) (Presenter, error) {
	switch cfg.Output {
	case "", "human":
		return &humanPresenter{
			w:       cfg.Writer,
			errW:    cfg.ErrWriter,
			stats:   cfg.Stats,
			quiet:   cfg.Quiet,
			verbose: cfg.Verbose,
			isTTY:   cfg.IsTTY,
		}, nil
	case "json":
		return &jsonPresenter{w: cfg.Writer, stats: cfg.Stats}, nil
	case "jsonl":
		return &jsonlPresenter{w: cfg.Writer}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want human, json, or jsonl)", cfg.Output)
	}
}

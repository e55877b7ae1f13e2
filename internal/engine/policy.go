package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/event"
)

// ConflictMode controls what happens when the destination already exists.
type ConflictMode int

const (
	// Skip leaves existing destinations unchanged (enables resume).
	Skip ConflictMode = iota
	// Overwrite replaces existing destinations via atomic rename.
	Overwrite
	// UpdateNewer copies only when the source mtime is strictly greater.
	UpdateNewer
	// ErrorIfExists fails the item with already_exists.
	ErrorIfExists
)

func (m ConflictMode) String() string {
	switch m {
	case Skip:
		return "skip"
	case Overwrite:
		return "overwrite"
	case UpdateNewer:
		return "update"
	case ErrorIfExists:
		return "error"
	default:
		return "unknown"
	}
}

// ParseConflictMode parses a CLI/config conflict mode name.
func ParseConflictMode(s string) (ConflictMode, error) {
	switch strings.ToLower(s) {
	case "skip":
		return Skip, nil
	case "overwrite":
		return Overwrite, nil
	case "update", "update-newer":
		return UpdateNewer, nil
	case "error":
		return ErrorIfExists, nil
	default:
		return Skip, fmt.Errorf("unknown conflict mode %q", s)
	}
}

// Action is the per-item outcome of a policy decision.
type Action int

const (
	ActionCopy Action = iota // destination absent
	ActionSkip
	ActionOverwrite
	ActionUpdate
	ActionFail
)

// Event maps a policy action to its wire representation.
func (a Action) Event() event.Action {
	switch a {
	case ActionCopy:
		return event.ActionCopy
	case ActionSkip:
		return event.ActionSkip
	case ActionOverwrite:
		return event.ActionOverwrite
	case ActionUpdate:
		return event.ActionUpdate
	default:
		return event.ActionFail
	}
}

// Decision is what the policy concluded for one item.
type Decision struct {
	Action Action
	Code   copyerr.Code // set when Action == ActionFail
}

// decide consults the destination state for a non-directory item. Replacing
// a directory with a non-directory is refused in every mode: that is the
// hard safety rule that keeps a copy from ever deleting a tree.
func decide(item *Item, mode ConflictMode) Decision {
	dstInfo, err := os.Lstat(item.Dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Decision{Action: ActionCopy}
		}
		return Decision{Action: ActionFail, Code: copyerr.Classify(err)}
	}

	if dstInfo.IsDir() {
		return Decision{Action: ActionFail, Code: copyerr.CodeIsADirectory}
	}

	switch mode {
	case Skip:
		return Decision{Action: ActionSkip}
	case Overwrite:
		return Decision{Action: ActionOverwrite}
	case UpdateNewer:
		// Symlinks carry no meaningful mtime; treat like Skip.
		if item.Kind == KindSymlink {
			return Decision{Action: ActionSkip}
		}
		if item.ModTime.After(dstInfo.ModTime()) {
			return Decision{Action: ActionUpdate}
		}
		return Decision{Action: ActionSkip}
	case ErrorIfExists:
		return Decision{Action: ActionFail, Code: copyerr.CodeAlreadyExists}
	default:
		return Decision{Action: ActionFail, Code: copyerr.CodeInternal}
	}
}

// decideDir evaluates ensure-exists semantics for a directory destination.
func decideDir(dst string) Decision {
	dstInfo, err := os.Lstat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Decision{Action: ActionCopy}
		}
		return Decision{Action: ActionFail, Code: copyerr.Classify(err)}
	}
	if dstInfo.IsDir() {
		return Decision{Action: ActionSkip}
	}
	return Decision{Action: ActionFail, Code: copyerr.CodeAlreadyExists}
}

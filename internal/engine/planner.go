package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/event"
)

// PlannedItem is one decision from a dry run.
type PlannedItem struct {
	Src    string
	Dst    string
	Kind   Kind
	Action event.Action
	Bytes  int64
	Code   copyerr.Code // set when Action == fail
}

// Plan walks the source and produces the same per-item decisions a real
// run would make, without any filesystem mutation: it stats source and
// destination but never creates, deletes, or renames.
func Plan(ctx context.Context, src, dst string, cfg Config) ([]PlannedItem, error) {
	applyDefaults(&cfg)

	srcInfo, err := os.Lstat(src)
	if err != nil {
		return nil, copyerr.New(copyerr.CodeSourceNotFound, src, err)
	}

	if cfg.Events != nil {
		cfg.Events <- event.Event{
			Type:      event.EffectiveConfig,
			Timestamp: time.Now(),
			Config:    configPayload(src, dst, &cfg, true),
		}
	}

	p := &planner{cfg: &cfg, srcRoot: src}

	if !srcInfo.IsDir() {
		item, err := singleItem(src, dst, srcInfo)
		if err != nil {
			return nil, err
		}
		p.planItem(item)
		return p.items, nil
	}

	p.planDir(ctx, src, dst, srcInfo, 0)
	return p.items, ctx.Err()
}

type planner struct {
	cfg     *Config
	srcRoot string
	stack   []ancestor
	items   []PlannedItem
}

func (p *planner) planDir(ctx context.Context, srcDir, dstDir string, info fs.FileInfo, depth int) {
	if ctx.Err() != nil {
		return
	}

	if id, ok := identityOf(srcDir, info); ok {
		for _, a := range p.stack {
			if a.id == id {
				p.record(PlannedItem{
					Src: srcDir, Dst: dstDir, Kind: KindDir,
					Action: event.ActionFail, Code: copyerr.CodeSymlinkLoop,
				})
				return
			}
		}
		p.stack = append(p.stack, ancestor{id: id, path: srcDir})
		defer func() { p.stack = p.stack[:len(p.stack)-1] }()
	}

	dec := decideDir(dstDir)
	item := PlannedItem{Src: srcDir, Dst: dstDir, Kind: KindDir, Action: dec.Action.Event(), Code: dec.Code}
	p.record(item)
	if dec.Action == ActionFail {
		return
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		p.record(PlannedItem{
			Src: srcDir, Dst: dstDir, Kind: KindDir,
			Action: event.ActionFail, Code: copyerr.Classify(err),
		})
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())

		entryInfo, err := entry.Info()
		if err != nil {
			p.record(PlannedItem{
				Src: srcPath, Dst: dstPath,
				Action: event.ActionFail, Code: copyerr.Classify(err),
			})
			continue
		}

		rel := p.rel(srcPath)
		mode := entryInfo.Mode()

		switch {
		case mode.IsDir():
			if p.cfg.MaxDepth > 0 && depth+1 > p.cfg.MaxDepth {
				continue
			}
			if !p.cfg.Filter.Match(rel, true, 0) {
				continue
			}
			p.planDir(ctx, srcPath, dstPath, entryInfo, depth+1)

		case mode&fs.ModeSymlink != 0:
			if !p.cfg.Filter.Match(rel, false, 0) {
				continue
			}
			target, err := os.Readlink(srcPath)
			if err != nil {
				p.record(PlannedItem{
					Src: srcPath, Dst: dstPath, Kind: KindSymlink,
					Action: event.ActionFail, Code: copyerr.Classify(err),
				})
				continue
			}
			p.planItem(Item{
				Src: srcPath, Dst: dstPath, Kind: KindSymlink,
				Mode: mode, ModTime: entryInfo.ModTime(),
				LinkTarget: target,
				Escaping:   escapes(p.srcRoot, srcDir, target),
			})

		case mode.IsRegular():
			if !p.cfg.Filter.Match(rel, false, entryInfo.Size()) {
				continue
			}
			p.planItem(Item{
				Src: srcPath, Dst: dstPath, Kind: KindFile,
				Size: entryInfo.Size(), Mode: mode, ModTime: entryInfo.ModTime(),
			})
		}
	}
}

// planItem evaluates the policy for a non-directory item without touching
// the filesystem.
func (p *planner) planItem(item Item) {
	if item.Kind == KindSymlink && item.Escaping && p.cfg.BlockEscapingSymlinks {
		p.record(PlannedItem{
			Src: item.Src, Dst: item.Dst, Kind: item.Kind,
			Action: event.ActionFail, Code: copyerr.CodeInvalidInput,
		})
		return
	}

	dec := decide(&item, p.cfg.OnConflict)
	p.record(PlannedItem{
		Src: item.Src, Dst: item.Dst, Kind: item.Kind,
		Action: dec.Action.Event(), Bytes: item.Size, Code: dec.Code,
	})
}

func (p *planner) record(item PlannedItem) {
	p.items = append(p.items, item)
	if p.cfg.Events != nil {
		p.cfg.Events <- event.Event{
			Type:      event.PlanItem,
			Timestamp: time.Now(),
			Src:       item.Src,
			Dst:       item.Dst,
			Item:      item.Kind.String(),
			Action:    item.Action,
			Bytes:     item.Bytes,
			ErrorCode: string(item.Code),
		}
	}
}

func (p *planner) rel(path string) string {
	rel, err := filepath.Rel(p.srcRoot, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// singleItem builds the work item for a non-directory source.
func singleItem(src, dst string, srcInfo fs.FileInfo) (Item, error) {
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	item := Item{
		Src:     src,
		Dst:     dst,
		Size:    srcInfo.Size(),
		Mode:    srcInfo.Mode(),
		ModTime: srcInfo.ModTime(),
	}
	switch {
	case srcInfo.Mode()&fs.ModeSymlink != 0:
		item.Kind = KindSymlink
		target, err := os.Readlink(src)
		if err != nil {
			return Item{}, copyerr.Wrap(src, err)
		}
		item.LinkTarget = target
	case srcInfo.Mode().IsRegular():
		item.Kind = KindFile
	default:
		return Item{}, copyerr.New(copyerr.CodeInvalidInput, src,
			fmt.Errorf("unsupported source type %s", srcInfo.Mode()))
	}
	return item, nil
}

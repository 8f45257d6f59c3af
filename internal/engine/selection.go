package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Neroli1108/intellidoc-reader/internal/anchor"
	"github.com/Neroli1108/intellidoc-reader/internal/common"
)

// The selection state machine has two states, Idle and Selected(id),
// and one invariant enforced on every transition: at most one
// annotation carries the overlay style at any instant. The previous
// holder's overlay is always stripped before the next one is applied,
// even across repaints and racing reconciliation passes.

// SelectedID returns the currently selected annotation's ID, or the
// empty string when the selection is idle.
func (e *Engine) SelectedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedID
}

// Select makes the given annotation the exclusive selection, as when
// the user clicks a token carrying its tag.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.annotations[id]; !ok {
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	e.jumpGen++
	e.selectLocked(id)
	return nil
}

// SelectAt handles a click at a token position: a click on a tagged
// token selects that token's annotation, a click anywhere else clears
// the selection back to idle.
func (e *Engine) SelectAt(pageNumber, tokenIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A click is the newest statement of user intent; any jump still
	// waiting on a render must not land after it.
	e.jumpGen++

	for id, at := range e.anchored {
		if at.PageNumber == pageNumber && at.Range.Contains(tokenIndex) {
			e.selectLocked(id)
			return
		}
	}

	e.stripOverlayLocked()
}

// Deselect clears the selection back to idle, stripping the overlay
// from the current holder.
func (e *Engine) Deselect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jumpGen++
	e.stripOverlayLocked()
}

// JumpTo services a sidebar request: strip the current overlay
// regardless of target, scroll to the annotation's page, then anchor it
// with the bounded retry policy and select it on success.
//
// Every selection transition bumps the jump generation, so a retry
// chain still in flight for an earlier jump is superseded not just by a
// newer jump but by any click-select or deselect issued while it waits.
// The chain observes the newer generation and discards its result; a
// late-arriving retry can never steal the selection back. A superseded
// jump is not an error from the caller's point of view.
func (e *Engine) JumpTo(id string) error {
	e.mu.Lock()
	annotation, ok := e.annotations[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	e.stripOverlayLocked()
	e.jumpGen++
	gen := e.jumpGen
	pageNumber := annotation.PageNumber
	e.mu.Unlock()

	e.surface.ScrollTo(pageNumber)

	task := common.RetryTask{
		Gen: gen,
		Current: func() common.Generation {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.jumpGen
		},
		Op: func() error {
			tokens, rendered := e.surface.Tokens(pageNumber)
			if !rendered {
				return common.ErrPageNotRendered
			}

			e.mu.Lock()
			defer e.mu.Unlock()

			// The generation may have moved between the task's check
			// and this lock acquisition.
			if e.jumpGen != gen {
				return common.ErrSuperseded
			}

			target, exists := e.annotations[id]
			if !exists {
				// Deleted while the jump was in flight; no-op.
				return common.ErrSuperseded
			}

			rng, found := anchor.Locate(target.Signature, tokens)
			if !found {
				return common.ErrAnchorNotFound
			}

			e.anchored[id] = anchoredRange{PageNumber: pageNumber, Range: rng}
			e.surface.TagRange(pageNumber, rng, e.baseTagLocked(target))
			e.selectLocked(id)
			return nil
		},
	}

	err := task.Run(e.ctx, e.cfg.Reconcile)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrSuperseded):
		// A newer jump owns the selection; discard silently.
		return nil
	case errors.Is(err, common.ErrMaxRetries):
		slog.Debug("jump could not anchor annotation", "id", id, "error", err)
		return nil
	default:
		return err
	}
}

// selectLocked transitions the state machine to Selected(id). Callers
// must hold e.mu and guarantee the annotation exists.
func (e *Engine) selectLocked(id string) {
	if e.selectedID == id {
		return
	}

	// Exclusivity handoff: undo the previous overlay before applying
	// the new one.
	e.stripOverlayLocked()

	e.selectedID = id
	if at, ok := e.anchored[id]; ok {
		e.surface.TagRange(at.PageNumber, at.Range, e.overlayTagLocked(e.annotations[id]))
	}
}

// stripOverlayLocked restores the base style on the current selection
// holder, if any, and returns the machine to idle. Callers must hold
// e.mu.
func (e *Engine) stripOverlayLocked() {
	if e.selectedID == "" {
		return
	}

	if prev, ok := e.annotations[e.selectedID]; ok {
		if at, isAnchored := e.anchored[prev.ID]; isAnchored {
			e.surface.TagRange(at.PageNumber, at.Range, e.baseTagLocked(prev))
		}
	}
	e.selectedID = ""
}

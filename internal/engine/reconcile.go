package engine

import (
	"errors"
	"log/slog"

	"github.com/Neroli1108/intellidoc-reader/internal/anchor"
	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// PageRendered is the render-completion callback: the surface invokes
// it with the full, freshly regenerated token list every time a page is
// (re)painted. It may fire any number of times per page.
//
// One synchronous reconciliation pass runs immediately; annotations the
// pass could not anchor are handed to a bounded background retry chain.
// Each call bumps the page's generation, so retry chains started by an
// earlier render of the same page discard themselves instead of tagging
// against tokens that no longer exist.
func (e *Engine) PageRendered(pageNumber int, tokens []string) {
	e.mu.Lock()
	e.pageGen[pageNumber]++
	gen := e.pageGen[pageNumber]
	missing := e.reconcilePageLocked(pageNumber, tokens)
	e.mu.Unlock()

	if len(missing) == 0 {
		return
	}

	go e.retryReconcile(pageNumber, gen, missing)
}

// reconcilePageLocked runs one full anchor pass for every annotation on
// the page and returns the IDs that did not match. Tagging is
// idempotent: a second pass over unchanged tokens reproduces exactly
// the same tags.
func (e *Engine) reconcilePageLocked(pageNumber int, tokens []string) []string {
	var missing []string

	for _, annotation := range e.annotations {
		if annotation.PageNumber != pageNumber || !annotation.Type.Anchorable() {
			continue
		}

		rng, found := anchor.Locate(annotation.Signature, tokens)
		if !found {
			// Leave no stale styling behind; the record stays valid in
			// the store and is retried at the next render trigger.
			delete(e.anchored, annotation.ID)
			e.surface.ClearTag(annotation.ID)
			missing = append(missing, annotation.ID)
			continue
		}

		e.anchored[annotation.ID] = anchoredRange{PageNumber: pageNumber, Range: rng}
		e.surface.TagRange(pageNumber, rng, e.baseTagLocked(annotation))
		if annotation.ID == e.selectedID {
			// Selection survives the repaint: reapply the overlay on
			// top of the base style in the same pass.
			e.surface.TagRange(pageNumber, rng, e.overlayTagLocked(annotation))
		}
	}

	return missing
}

// retryReconcile drives the bounded retry policy for annotations that
// did not anchor immediately, re-reading the surface tokens on every
// attempt. Gives up silently once attempts are exhausted: the
// annotation remains valid, just unanchored until a future render.
func (e *Engine) retryReconcile(pageNumber int, gen common.Generation, ids []string) {
	task := common.RetryTask{
		Gen: gen,
		Current: func() common.Generation {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.pageGen[pageNumber]
		},
		Op: func() error {
			tokens, ok := e.surface.Tokens(pageNumber)
			if !ok {
				return common.ErrPageNotRendered
			}

			e.mu.Lock()
			defer e.mu.Unlock()

			remaining := 0
			for _, id := range ids {
				annotation, exists := e.annotations[id]
				if !exists {
					continue // deleted while we were waiting
				}
				if _, done := e.anchored[id]; done {
					continue
				}

				rng, found := anchor.Locate(annotation.Signature, tokens)
				if !found {
					remaining++
					continue
				}

				e.anchored[id] = anchoredRange{PageNumber: pageNumber, Range: rng}
				e.surface.TagRange(pageNumber, rng, e.baseTagLocked(annotation))
				if id == e.selectedID {
					e.surface.TagRange(pageNumber, rng, e.overlayTagLocked(annotation))
				}
			}

			if remaining > 0 {
				return common.ErrAnchorNotFound
			}
			return nil
		},
	}

	err := task.Run(e.ctx, e.cfg.Reconcile)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSuperseded):
		// A newer render of this page owns reconciliation now.
	default:
		slog.Debug("reconciliation gave up",
			"page", pageNumber,
			"annotations", len(ids),
			"error", err)
	}
}

// AnchoredRange reports where an annotation currently sits on screen,
// if the last reconciliation pass anchored it.
func (e *Engine) AnchoredRange(id string) (int, model.TokenRange, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, ok := e.anchored[id]
	return at.PageNumber, at.Range, ok
}

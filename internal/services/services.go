// Package services implements the document generation pipeline: the
// attribute store, document types, single-item generation and batches.
package services

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/gate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// authorize maps gate refusals onto UNAUTHORIZED.
func authorize(ctx context.Context, g *gate.Gate[*gate.Actor], actor *gate.Actor, action gate.Action, resource string) error {
	if err := g.Authorize(ctx, actor, action, resource, nil); err != nil {
		id := "anonymous"
		if actor != nil && actor.ID != "" {
			id = actor.ID
		}
		return apperr.Wrap(apperr.KindUnauthorized, err, "%s may not %s %s", id, action, resource)
	}
	return nil
}

// notFound turns gorm.ErrRecordNotFound into a NOT_FOUND error and leaves
// other errors untouched.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %q not found", what, id)
	}
	return err
}

// removeFile deletes path, logging failures. A missing file is not a failure.
func removeFile(log *zap.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("could not remove file", zap.String("path", path), zap.Error(err))
	}
}

func strPtr(s string) *string { return &s }

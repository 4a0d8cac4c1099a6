package service

import (
	"context"
	"io"

	"appregistry/internal/application/export"
	"appregistry/internal/application/models"
	dErrors "appregistry/pkg/domain-errors"
)

// exportPageSize bounds memory while walking the catalog for export.
const exportPageSize = 200

// ExportCSV streams the whole catalog as CSV, most recently updated
// first.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "application.ExportCSV")
	defer span.End()

	var all []*models.Application
	for page := 1; ; page++ {
		batch, err := s.store.List(ctx, page, exportPageSize)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to export applications")
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize {
			break
		}
	}

	if err := export.WriteCSV(w, all); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render export")
	}
	return nil
}

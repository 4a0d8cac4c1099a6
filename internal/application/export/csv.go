// Package export renders catalog snapshots for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"appregistry/internal/application/models"
)

var csvHeader = []string{
	"id", "label", "short_name", "description", "purposes", "tags",
	"lifecycle_status", "first_production_date", "planned_decommissioning_date",
	"owner_email", "parent_id", "created_at", "updated_at",
}

// WriteCSV streams the given applications as CSV, one row per
// application. Multi-valued fields are joined with semicolons.
func WriteCSV(w io.Writer, apps []*models.Application) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, app := range apps {
		if err := cw.Write(row(app)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(app *models.Application) []string {
	var planned, parent string
	if app.Lifecycle.PlannedDecommissioningDate != nil {
		planned = app.Lifecycle.PlannedDecommissioningDate.Format(time.DateOnly)
	}
	if app.ParentID != nil {
		parent = app.ParentID.String()
	}
	return []string{
		app.ID.String(),
		app.Label,
		app.ShortName,
		app.Description,
		strings.Join(app.Purposes, ";"),
		strings.Join(app.Tags, ";"),
		string(app.Lifecycle.Status),
		app.Lifecycle.FirstProductionDate.Format(time.DateOnly),
		planned,
		ownerEmail(app),
		parent,
		app.Metadata.CreatedAt.Format(time.RFC3339),
		app.Metadata.UpdatedAt.Format(time.RFC3339),
	}
}

func ownerEmail(app *models.Application) string {
	for _, a := range app.Actors {
		if a.Role == models.OwnerRole {
			return a.Email
		}
	}
	return ""
}

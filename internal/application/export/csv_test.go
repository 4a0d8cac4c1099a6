package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appregistry/internal/application/models"
	id "appregistry/pkg/domain"
)

func TestWriteCSV(t *testing.T) {
	owner := id.NewUserID()
	planned := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	app := &models.Application{
		ID:          id.NewApplicationID(),
		Label:       "Payroll",
		ShortName:   "PAY",
		Description: "salary runs",
		Purposes:    []string{"hr", "finance"},
		Tags:        []string{"internal"},
		OwnerID:     owner,
		Lifecycle: models.Lifecycle{
			ID:                         uuid.New(),
			Status:                     models.LifecycleInProduction,
			FirstProductionDate:        time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
			PlannedDecommissioningDate: &planned,
		},
		Actors: []models.Actor{
			{ID: uuid.New(), Role: models.OwnerRole, Email: "owner@example.org"},
			{ID: uuid.New(), Role: "Exploitation"},
		},
		Metadata: models.Metadata{
			CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*models.Application{app}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])

	row := records[1]
	assert.Equal(t, app.ID.String(), row[0])
	assert.Equal(t, "Payroll", row[1])
	assert.Equal(t, "hr;finance", row[4])
	assert.Equal(t, "in_production", row[6])
	assert.Equal(t, "2020-01-15", row[7])
	assert.Equal(t, "2027-06-30", row[8])
	assert.Equal(t, "owner@example.org", row[9])
	assert.Equal(t, "", row[10])
}

func TestWriteCSV_EmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

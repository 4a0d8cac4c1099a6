package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appregistry/internal/application/models"
	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

func seedApp(t *testing.T, s *InMemoryStore, label string, updatedAt time.Time, mutate func(*models.Application)) *models.Application {
	t.Helper()
	app := &models.Application{
		ID:      id.NewApplicationID(),
		Label:   label,
		OwnerID: id.NewUserID(),
		Lifecycle: models.Lifecycle{
			ID:                  uuid.New(),
			Status:              models.LifecycleInProduction,
			FirstProductionDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Actors: []models.Actor{{ID: uuid.New(), Role: models.OwnerRole}},
		Metadata: models.Metadata{
			ID:        uuid.New(),
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		},
	}
	if mutate != nil {
		mutate(app)
	}
	require.NoError(t, s.Insert(context.Background(), app))
	return app
}

func TestInMemoryStore_InsertAndFind(t *testing.T) {
	s := NewInMemoryStore()
	app := seedApp(t, s, "Payroll", time.Now(), nil)

	got, err := s.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll", got.Label)

	// Mutating the returned snapshot must not leak into the store.
	got.Label = "changed"
	again, err := s.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll", again.Label)
}

func TestInMemoryStore_FindMissing(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.FindByID(context.Background(), id.NewApplicationID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ListOrdersByUpdatedAtDesc(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedApp(t, s, "old", base, nil)
	seedApp(t, s, "newer", base.Add(time.Hour), nil)
	seedApp(t, s, "newest", base.Add(2*time.Hour), nil)

	apps, err := s.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "newest", apps[0].Label)
	assert.Equal(t, "newer", apps[1].Label)
	assert.Equal(t, "old", apps[2].Label)
}

func TestInMemoryStore_ListPaginates(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedApp(t, s, "app", base.Add(time.Duration(i)*time.Minute), nil)
	}

	page1, err := s.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := s.List(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	beyond, err := s.List(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestInMemoryStore_SearchLabelIsAccentInsensitive(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	seedApp(t, s, "Référentiel Métier", now, nil)
	seedApp(t, s, "Billing", now, nil)

	apps, err := s.Search(context.Background(), models.SearchQuery{Label: "referentiel"}.Normalize())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Référentiel Métier", apps[0].Label)
}

func TestInMemoryStore_SearchTagsRequireAll(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	seedApp(t, s, "tagged", now, func(a *models.Application) {
		a.Tags = []string{"finance", "internal"}
	})
	seedApp(t, s, "partial", now, func(a *models.Application) {
		a.Tags = []string{"finance"}
	})

	apps, err := s.Search(context.Background(), models.SearchQuery{Tags: []string{"Finance", "internal"}}.Normalize())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "tagged", apps[0].Label)
}

func TestInMemoryStore_SearchTagsMatchAccentInsensitiveSubstrings(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	seedApp(t, s, "secured", now, func(a *models.Application) {
		a.Tags = []string{"Sécurité", "finance"}
	})
	seedApp(t, s, "other", now, func(a *models.Application) {
		a.Tags = []string{"interne"}
	})

	apps, err := s.Search(context.Background(), models.SearchQuery{Tags: []string{"securite"}}.Normalize())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "secured", apps[0].Label)

	// A tag filter also matches inside a longer stored tag.
	apps, err = s.Search(context.Background(), models.SearchQuery{Tags: []string{"fin"}}.Normalize())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "secured", apps[0].Label)

	apps, err = s.Search(context.Background(), models.SearchQuery{Tags: []string{"payroll"}}.Normalize())
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestInMemoryStore_FindByResourceLink(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	seedApp(t, s, "documented", now, func(a *models.Application) {
		a.ExternalResources = []models.ExternalResource{{
			ID:   uuid.New(),
			Link: "https://wiki.internal/app",
			Type: models.ResourceDocumentation,
		}}
	})
	seedApp(t, s, "bare", now, nil)

	apps, err := s.FindByResourceLink(context.Background(), "https://wiki.internal/app")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "documented", apps[0].Label)

	none, err := s.FindByResourceLink(context.Background(), "https://elsewhere")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_ApplyScalarAndCollections(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	app := seedApp(t, s, "before", time.Now(), func(a *models.Application) {
		a.Compliances = []models.Compliance{{ID: uuid.New(), Name: "GDPR"}}
	})

	label := "after"
	newActor := models.Actor{ID: uuid.New(), Role: "Exploitation", Type: models.ActorExploitation}
	upd := Update{
		Label: &label,
		Actors: &ActorChanges{
			Create: []models.Actor{newActor},
		},
		Compliances: &ComplianceChanges{
			Delete: []string{app.Compliances[0].ID.String()},
		},
		UpdatedAt: time.Now().Add(time.Minute),
		UpdatedBy: id.NewUserID(),
	}
	require.NoError(t, s.Apply(ctx, app.ID, upd))

	got, err := s.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Label)
	assert.Len(t, got.Actors, 2)
	assert.Empty(t, got.Compliances)
	assert.Equal(t, upd.UpdatedBy, got.Metadata.UpdatedBy)
}

func TestInMemoryStore_ApplyParentConnectRequiresExisting(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	app := seedApp(t, s, "child", time.Now(), nil)

	err := s.Apply(ctx, app.ID, Update{
		Parent: &ParentChange{Parent: id.NewApplicationID()},
	})
	assert.ErrorIs(t, err, sentinel.ErrForeignKey)

	parent := seedApp(t, s, "parent", time.Now(), nil)
	require.NoError(t, s.Apply(ctx, app.ID, Update{
		Parent: &ParentChange{Parent: parent.ID},
	}))

	got, err := s.ParentOf(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, parent.ID, *got)

	require.NoError(t, s.Apply(ctx, app.ID, Update{Parent: &ParentChange{Disconnect: true}}))
	got, err = s.ParentOf(ctx, app.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryStore_DeleteDetachesChildren(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	parent := seedApp(t, s, "parent", time.Now(), nil)
	child := seedApp(t, s, "child", time.Now(), nil)
	require.NoError(t, s.Apply(ctx, child.ID, Update{Parent: &ParentChange{Parent: parent.ID}}))

	require.NoError(t, s.Delete(ctx, parent.ID))

	_, err := s.FindByID(ctx, parent.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	got, err := s.ParentOf(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

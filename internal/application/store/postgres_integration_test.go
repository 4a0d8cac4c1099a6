//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"appregistry/internal/application/models"
	"appregistry/internal/application/store"
	"appregistry/internal/user"
	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
	"appregistry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	users    *user.PostgresStore
	owner    id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.users = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"anomaly_notifications", "external_resources", "compliances", "actors",
		"lifecycles", "applications", "metadata", "users",
	)
	s.Require().NoError(err)

	s.owner = id.NewUserID()
	s.Require().NoError(s.users.Insert(ctx, &user.User{
		ID:        s.owner,
		Email:     "owner@example.org",
		CreatedAt: time.Now(),
	}))
}

func (s *PostgresStoreSuite) newApp(label string) *models.Application {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Application{
		ID:       id.NewApplicationID(),
		Label:    label,
		Purposes: []string{"billing"},
		Tags:     []string{"finance", "internal"},
		OwnerID:  s.owner,
		Lifecycle: models.Lifecycle{
			ID:                  uuid.New(),
			Status:              models.LifecycleInProduction,
			FirstProductionDate: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Actors: []models.Actor{{
			ID:     uuid.New(),
			Role:   models.OwnerRole,
			Type:   models.ActorResponsable,
			Email:  "owner@example.org",
			UserID: &s.owner,
		}},
		Metadata: models.Metadata{
			ID:        uuid.New(),
			CreatedAt: now,
			CreatedBy: s.owner,
			UpdatedAt: now,
			UpdatedBy: s.owner,
		},
	}
}

func (s *PostgresStoreSuite) TestInsertAndFindRoundTrip() {
	ctx := context.Background()
	app := s.newApp("Payroll")
	app.ExternalResources = []models.ExternalResource{{
		ID:   uuid.New(),
		Link: "https://wiki.internal/payroll",
		Type: models.ResourceDocumentation,
	}}
	s.Require().NoError(s.store.Insert(ctx, app))

	got, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal("Payroll", got.Label)
	s.Equal([]string{"finance", "internal"}, got.Tags)
	s.Equal(models.LifecycleInProduction, got.Lifecycle.Status)
	s.Require().Len(got.Actors, 1)
	s.Equal(models.OwnerRole, got.Actors[0].Role)
	s.Require().Len(got.ExternalResources, 1)
	s.Equal("https://wiki.internal/payroll", got.ExternalResources[0].Link)
	s.Equal(s.owner, got.Metadata.CreatedBy)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewApplicationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestInsertUnknownOwnerFails() {
	app := s.newApp("Orphan")
	app.OwnerID = id.NewUserID()
	err := s.store.Insert(context.Background(), app)
	s.ErrorIs(err, sentinel.ErrForeignKey)
}

func (s *PostgresStoreSuite) TestSearchLabelIsAccentAndCaseInsensitive() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newApp("Référentiel Métier")))
	s.Require().NoError(s.store.Insert(ctx, s.newApp("Billing")))

	apps, err := s.store.Search(ctx, models.SearchQuery{Label: "REFERENTIEL"})
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal("Référentiel Métier", apps[0].Label)
}

func (s *PostgresStoreSuite) TestSearchTagsRequireAll() {
	ctx := context.Background()
	both := s.newApp("both")
	s.Require().NoError(s.store.Insert(ctx, both))
	one := s.newApp("one")
	one.Tags = []string{"finance"}
	s.Require().NoError(s.store.Insert(ctx, one))

	apps, err := s.store.Search(ctx, models.SearchQuery{Tags: []string{"Finance", "internal"}})
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal("both", apps[0].Label)
}

func (s *PostgresStoreSuite) TestSearchTagsMatchAccentInsensitiveSubstrings() {
	ctx := context.Background()
	secured := s.newApp("secured")
	secured.Tags = []string{"Sécurité", "España", "finance"}
	s.Require().NoError(s.store.Insert(ctx, secured))
	other := s.newApp("other")
	other.Tags = []string{"interne"}
	s.Require().NoError(s.store.Insert(ctx, other))

	for _, tag := range []string{"securite", "espana", "fin"} {
		apps, err := s.store.Search(ctx, models.SearchQuery{Tags: []string{tag}})
		s.Require().NoError(err)
		s.Require().Len(apps, 1, "tag %q", tag)
		s.Equal("secured", apps[0].Label)
	}

	apps, err := s.store.Search(ctx, models.SearchQuery{Tags: []string{"payroll"}})
	s.Require().NoError(err)
	s.Empty(apps)
}

func (s *PostgresStoreSuite) TestApplyReconciliationChanges() {
	ctx := context.Background()
	app := s.newApp("evolving")
	app.Compliances = []models.Compliance{{ID: uuid.New(), Name: "GDPR", Type: models.ComplianceRegulation}}
	s.Require().NoError(s.store.Insert(ctx, app))

	label := "evolved"
	newActor := models.Actor{ID: uuid.New(), Role: "Exploitation", Type: models.ActorExploitation}
	updatedCompliance := app.Compliances[0]
	updatedCompliance.Status = models.Compliant

	err := s.store.Apply(ctx, app.ID, store.Update{
		Label: &label,
		Actors: &store.ActorChanges{
			Create: []models.Actor{newActor},
		},
		Compliances: &store.ComplianceChanges{
			Update: []models.Compliance{updatedCompliance},
		},
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: s.owner,
	})
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal("evolved", got.Label)
	s.Len(got.Actors, 2)
	s.Require().Len(got.Compliances, 1)
	s.Equal(models.Compliant, got.Compliances[0].Status)
}

func (s *PostgresStoreSuite) TestParentConnectAndDisconnect() {
	ctx := context.Background()
	parent := s.newApp("parent")
	child := s.newApp("child")
	s.Require().NoError(s.store.Insert(ctx, parent))
	s.Require().NoError(s.store.Insert(ctx, child))

	err := s.store.Apply(ctx, child.ID, store.Update{
		Parent:    &store.ParentChange{Parent: parent.ID},
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: s.owner,
	})
	s.Require().NoError(err)

	got, err := s.store.ParentOf(ctx, child.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(parent.ID, *got)

	err = s.store.Apply(ctx, child.ID, store.Update{
		Parent:    &store.ParentChange{Disconnect: true},
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: s.owner,
	})
	s.Require().NoError(err)

	got, err = s.store.ParentOf(ctx, child.ID)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *PostgresStoreSuite) TestDeleteRemovesAggregate() {
	ctx := context.Background()
	app := s.newApp("doomed")
	s.Require().NoError(s.store.Insert(ctx, app))

	s.Require().NoError(s.store.Delete(ctx, app.ID))

	_, err := s.store.FindByID(ctx, app.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestFindByResourceLink() {
	ctx := context.Background()
	app := s.newApp("documented")
	app.ExternalResources = []models.ExternalResource{{
		ID:   uuid.New(),
		Link: "https://grafana.internal/d/app",
		Type: models.ResourceSupervision,
	}}
	s.Require().NoError(s.store.Insert(ctx, app))
	s.Require().NoError(s.store.Insert(ctx, s.newApp("bare")))

	apps, err := s.store.FindByResourceLink(ctx, "https://grafana.internal/d/app")
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal("documented", apps[0].Label)
}

package store

import (
	"context"
	"sort"
	"sync"

	"appregistry/internal/application/models"
	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
	"appregistry/pkg/textfold"
)

// InMemoryStore keeps aggregates in a map. Used by unit tests and local
// development; snapshots are deep-copied on the way in and out.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[id.ApplicationID]*models.Application)}
}

func (s *InMemoryStore) Insert(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrConflict
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, page, limit int) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.sorted(), page, limit), nil
}

func (s *InMemoryStore) Apply(_ context.Context, appID id.ApplicationID, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	if !ok {
		return sentinel.ErrNotFound
	}

	if upd.Label != nil {
		app.Label = *upd.Label
	}
	if upd.ShortName != nil {
		app.ShortName = *upd.ShortName
	}
	if upd.Logo != nil {
		app.Logo = *upd.Logo
	}
	if upd.Description != nil {
		app.Description = *upd.Description
	}
	if upd.Purposes != nil {
		app.Purposes = append([]string(nil), (*upd.Purposes)...)
	}
	if upd.Tags != nil {
		app.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.Parent != nil {
		if upd.Parent.Disconnect {
			app.ParentID = nil
		} else {
			parent := upd.Parent.Parent
			if _, ok := s.apps[parent]; !ok {
				return sentinel.ErrForeignKey
			}
			app.ParentID = &parent
		}
	}
	if upd.Lifecycle != nil {
		if upd.Lifecycle.Status != nil {
			app.Lifecycle.Status = *upd.Lifecycle.Status
		}
		if upd.Lifecycle.FirstProductionDate != nil {
			app.Lifecycle.FirstProductionDate = *upd.Lifecycle.FirstProductionDate
		}
		if upd.Lifecycle.ClearPlannedDecommissioning {
			app.Lifecycle.PlannedDecommissioningDate = nil
		} else if upd.Lifecycle.PlannedDecommissioningDate != nil {
			d := *upd.Lifecycle.PlannedDecommissioningDate
			app.Lifecycle.PlannedDecommissioningDate = &d
		}
	}
	if upd.Actors != nil {
		app.Actors = applyActorChanges(app.Actors, *upd.Actors)
	}
	if upd.Compliances != nil {
		app.Compliances = applyComplianceChanges(app.Compliances, *upd.Compliances)
	}
	if upd.ExternalResources != nil {
		app.ExternalResources = applyResourceChanges(app.ExternalResources, *upd.ExternalResources)
	}

	app.Metadata.UpdatedAt = upd.UpdatedAt
	app.Metadata.UpdatedBy = upd.UpdatedBy
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, appID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, other := range s.apps {
		if other.ParentID != nil && *other.ParentID == appID {
			other.ParentID = nil
		}
	}
	delete(s.apps, appID)
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, q models.SearchQuery) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Application
	for _, app := range s.sorted() {
		if q.Label != "" && !textfold.Contains(app.Label, q.Label) {
			continue
		}
		if !containsAllTags(app.Tags, q.Tags) {
			continue
		}
		matched = append(matched, app)
	}
	return paginate(matched, q.Page, q.Limit), nil
}

func (s *InMemoryStore) FindByResourceLink(_ context.Context, link string) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Application
	for _, app := range s.sorted() {
		for _, res := range app.ExternalResources {
			if res.Link == link {
				matched = append(matched, app)
				break
			}
		}
	}
	return matched, nil
}

func (s *InMemoryStore) ParentOf(_ context.Context, appID id.ApplicationID) (*id.ApplicationID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if app.ParentID == nil {
		return nil, nil
	}
	parent := *app.ParentID
	return &parent, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps), nil
}

// sorted returns cloned aggregates, most recently updated first. Callers
// must hold at least the read lock.
func (s *InMemoryStore) sorted() []*models.Application {
	out := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Metadata.UpdatedAt.Equal(out[j].Metadata.UpdatedAt) {
			return out[i].Metadata.UpdatedAt.After(out[j].Metadata.UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func paginate(apps []*models.Application, page, limit int) []*models.Application {
	if page < 1 {
		page = models.DefaultPage
	}
	if limit < 1 {
		limit = models.DefaultLimit
	}
	start := (page - 1) * limit
	if start >= len(apps) {
		return []*models.Application{}
	}
	end := start + limit
	if end > len(apps) {
		end = len(apps)
	}
	return apps[start:end]
}

// containsAllTags requires every wanted tag to match some stored tag as a
// case- and accent-insensitive substring.
func containsAllTags(have, want []string) bool {
	for _, w := range want {
		matched := false
		for _, h := range have {
			if textfold.Contains(h, w) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func applyActorChanges(current []models.Actor, ch ActorChanges) []models.Actor {
	deleted := idSet(ch.Delete)
	updated := make(map[string]models.Actor, len(ch.Update))
	for _, a := range ch.Update {
		updated[a.ID.String()] = a
	}

	out := current[:0]
	for _, a := range current {
		key := a.ID.String()
		if deleted[key] {
			continue
		}
		if repl, ok := updated[key]; ok {
			a = repl
		}
		out = append(out, a)
	}
	return append(out, ch.Create...)
}

func applyComplianceChanges(current []models.Compliance, ch ComplianceChanges) []models.Compliance {
	deleted := idSet(ch.Delete)
	updated := make(map[string]models.Compliance, len(ch.Update))
	for _, c := range ch.Update {
		updated[c.ID.String()] = c
	}

	out := current[:0]
	for _, c := range current {
		key := c.ID.String()
		if deleted[key] {
			continue
		}
		if repl, ok := updated[key]; ok {
			c = repl
		}
		out = append(out, c)
	}
	return append(out, ch.Create...)
}

func applyResourceChanges(current []models.ExternalResource, ch ExternalResourceChanges) []models.ExternalResource {
	deleted := idSet(ch.Delete)
	updated := make(map[string]models.ExternalResource, len(ch.Update))
	for _, r := range ch.Update {
		updated[r.ID.String()] = r
	}

	out := current[:0]
	for _, r := range current {
		key := r.ID.String()
		if deleted[key] {
			continue
		}
		if repl, ok := updated[key]; ok {
			r = repl
		}
		out = append(out, r)
	}
	return append(out, ch.Create...)
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, s := range ids {
		set[s] = true
	}
	return set
}

package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"golang.org/x/sync/errgroup"
)

// mockRepository implements Repository for testing. rowLock serializes
// Mutate calls the way the category row lock does; mu guards the map.
type mockRepository struct {
	rowLock    sync.Mutex
	mu         sync.Mutex
	categories map[string]*domain.Category
	seq        int
}

func newMockRepository() *mockRepository {
	return &mockRepository{categories: make(map[string]*domain.Category)}
}

func clone(c *domain.Category) *domain.Category {
	out := *c
	out.Subcategories = append([]domain.Subcategory{}, c.Subcategories...)
	return &out
}

func (m *mockRepository) Create(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("c%d", m.seq)
	m.categories[c.ID] = clone(c)
	return nil
}

func (m *mockRepository) Get(_ context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return clone(c), nil
}

func (m *mockRepository) List(_ context.Context, filter Filter) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Category, 0)
	for _, c := range m.categories {
		if !filter.IncludeArchived && c.Status == domain.CategoryStatusArchived {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) Mutate(ctx context.Context, id string, fn func(c *domain.Category) error) (*domain.Category, error) {
	m.rowLock.Lock()
	defer m.rowLock.Unlock()

	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[id] = clone(c)
	return c, nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *mockRepository) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.categories), nil
}

var (
	admin    = domain.Session{UserID: "A1", Name: "Admin", Role: domain.RoleAdmin}
	reviewer = domain.Session{UserID: "V1", Name: "Reviewer1", Role: domain.RoleReviewer}
)

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, access.MustNewPolicy(), time.Second), repo
}

func TestSeed(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultCategories), created)

	created, err = svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created, "seed is a no-op on a populated catalog")

	active, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	names := make([]string, len(active))
	for i, c := range active {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"IT Infrastructure", "Safety", "Workplace"}, names)

	all, err := svc.List(context.Background(), Filter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.Create(context.Background(), admin, CreateInput{
		Name:          " Security ",
		Subcategories: []string{"Access Badge", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "Security", c.Name)
	assert.Equal(t, domain.CategoryPriorityNormal, c.Priority)
	assert.Equal(t, domain.CategoryStatusActive, c.Status)
	require.Len(t, c.Subcategories, 1)
	assert.NotEmpty(t, c.Subcategories[0].ID)
	assert.True(t, c.Subcategories[0].Active)

	tests := []struct {
		name    string
		session domain.Session
		input   CreateInput
		wantErr error
	}{
		{"duplicate ignoring case", admin, CreateInput{Name: "SECURITY"}, ErrDuplicateName},
		{"duplicate subcategories", admin, CreateInput{Name: "Other", Subcategories: []string{"Door", "door"}}, ErrDuplicateName},
		{"missing name", admin, CreateInput{Name: "  "}, ErrValidation},
		{"unknown priority", admin, CreateInput{Name: "X", Priority: "Urgent"}, ErrValidation},
		{"reviewer cannot manage", reviewer, CreateInput{Name: "Y"}, access.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.session, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.Create(context.Background(), admin, CreateInput{Name: "Alpha"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, CreateInput{Name: "Beta"})
	require.NoError(t, err)

	archived := domain.CategoryStatusArchived
	sameName := "ALPHA"
	updated, err := svc.Update(context.Background(), admin, a.ID, UpdateInput{Name: &sameName, Status: &archived})
	require.NoError(t, err, "renaming to a different case of its own name is allowed")
	assert.Equal(t, "ALPHA", updated.Name)
	assert.Equal(t, domain.CategoryStatusArchived, updated.Status)

	taken := "beta"
	_, err = svc.Update(context.Background(), admin, a.ID, UpdateInput{Name: &taken})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.Update(context.Background(), admin, "missing", UpdateInput{})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestSubcategories(t *testing.T) {
	svc, repo := newTestService()
	c, err := svc.Create(context.Background(), admin, CreateInput{Name: "Safety", Subcategories: []string{"Fire Hazard"}})
	require.NoError(t, err)
	fireID := c.Subcategories[0].ID

	c, err = svc.AddSubcategory(context.Background(), admin, c.ID, "Chemical Spill")
	require.NoError(t, err)
	require.Len(t, c.Subcategories, 2)

	_, err = svc.AddSubcategory(context.Background(), admin, c.ID, "fire hazard")
	assert.ErrorIs(t, err, ErrDuplicateName)

	c, err = svc.RenameSubcategory(context.Background(), admin, c.ID, fireID, "Fire Risk")
	require.NoError(t, err)
	assert.Equal(t, fireID, c.Subcategories[0].ID, "rename keeps the id")
	assert.Equal(t, "Fire Risk", c.Subcategories[0].Name)

	_, err = svc.RenameSubcategory(context.Background(), admin, c.ID, fireID, "CHEMICAL SPILL")
	assert.ErrorIs(t, err, ErrDuplicateName)

	c, err = svc.ToggleSubcategory(context.Background(), admin, c.ID, fireID)
	require.NoError(t, err)
	assert.False(t, c.Subcategories[0].Active)

	c, err = svc.DeleteSubcategory(context.Background(), admin, c.ID, fireID)
	require.NoError(t, err)
	require.Len(t, c.Subcategories, 1)
	assert.Equal(t, "Chemical Spill", c.Subcategories[0].Name)
	assert.Len(t, repo.categories[c.ID].Subcategories, 1)

	_, err = svc.ToggleSubcategory(context.Background(), admin, c.ID, fireID)
	assert.ErrorIs(t, err, ErrSubcategoryNotFound)

	_, err = svc.AddSubcategory(context.Background(), reviewer, c.ID, "Other")
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	c, err := svc.Create(context.Background(), admin, CreateInput{Name: "Temp"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), reviewer, c.ID), access.ErrPermissionDenied)
	require.NoError(t, svc.Delete(context.Background(), admin, c.ID))
	assert.Empty(t, repo.categories)
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, c.ID), ErrCategoryNotFound)
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, foldName("Straße"), foldName("STRASSE"))
	assert.Equal(t, foldName(" Safety "), foldName("safety"))
	assert.NotEqual(t, foldName("Safety"), foldName("Safe"))
}

func TestSubcategories_ConcurrentEditsAllLand(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Create(context.Background(), admin, CreateInput{Name: "Facilities", Subcategories: []string{"Plumbing"}})
	require.NoError(t, err)
	plumbing := c.Subcategories[0].ID

	const adds = 20
	g, ctx := errgroup.WithContext(context.Background())
	for i := range adds {
		g.Go(func() error {
			_, err := svc.AddSubcategory(ctx, admin, c.ID, fmt.Sprintf("Area %d", i))
			return err
		})
	}
	g.Go(func() error {
		_, err := svc.RenameSubcategory(ctx, admin, c.ID, plumbing, "Pipes")
		return err
	})
	require.NoError(t, g.Wait())

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, got.Subcategories, adds+1)
	assert.Equal(t, plumbing, got.Subcategories[0].ID)
	assert.Equal(t, "Pipes", got.Subcategories[0].Name)
}

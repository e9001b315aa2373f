package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
	"golang.org/x/text/cases"
)

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
}

// Service implements category management.
type Service struct {
	repo    Repository
	policy  Authorizer
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository, policy Authorizer, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		policy:  policy,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput holds data for a new category.
type CreateInput struct {
	Name          string
	Priority      domain.CategoryPriority
	Icon          string
	Color         string
	Status        domain.CategoryStatus
	Subcategories []string
}

// UpdateInput holds category fields to change. Nil fields are kept.
type UpdateInput struct {
	Name     *string
	Priority *domain.CategoryPriority
	Icon     *string
	Color    *string
	Status   *domain.CategoryStatus
}

// List returns categories ordered by name.
func (s *Service) List(ctx context.Context, filter Filter) ([]*domain.Category, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) ([]*domain.Category, error) {
		return s.repo.List(ctx, filter)
	})
}

// Get returns a category by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Category, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.Category, error) {
		return s.repo.Get(ctx, id)
	})
}

// Create adds a category. Names are unique ignoring case.
func (s *Service) Create(ctx context.Context, session domain.Session, input CreateInput) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}
	category, err := s.build(input)
	if err != nil {
		return nil, err
	}
	if err := s.checkUniqueName(ctx, category.Name, ""); err != nil {
		return nil, err
	}

	err = deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Create(ctx, category)
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// Update changes category fields.
func (s *Service) Update(ctx context.Context, session domain.Session, id string, input UpdateInput) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}

	return s.modify(ctx, id, func(c *domain.Category) error {
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return fmt.Errorf("%w: name cannot be empty", ErrValidation)
			}
			if err := s.checkUniqueName(ctx, name, c.ID); err != nil {
				return err
			}
			c.Name = name
		}
		if input.Priority != nil {
			if !input.Priority.IsValid() {
				return fmt.Errorf("%w: unknown priority %q", ErrValidation, *input.Priority)
			}
			c.Priority = *input.Priority
		}
		if input.Status != nil {
			if !input.Status.IsValid() {
				return fmt.Errorf("%w: unknown status %q", ErrValidation, *input.Status)
			}
			c.Status = *input.Status
		}
		if input.Icon != nil {
			c.Icon = strings.TrimSpace(*input.Icon)
		}
		if input.Color != nil {
			c.Color = strings.TrimSpace(*input.Color)
		}
		return nil
	})
}

// Delete removes a category with its subcategories.
func (s *Service) Delete(ctx context.Context, session domain.Session, id string) error {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return err
	}
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

// AddSubcategory appends an active subcategory with a fresh stable id.
func (s *Service) AddSubcategory(ctx context.Context, session domain.Session, categoryID, name string) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subcategory name is required", ErrValidation)
	}

	return s.modify(ctx, categoryID, func(c *domain.Category) error {
		if subcategoryNamed(c, name, "") != nil {
			return fmt.Errorf("%w: subcategory %q", ErrDuplicateName, name)
		}
		c.Subcategories = append(c.Subcategories, domain.Subcategory{
			ID:     uuid.New().String(),
			Name:   name,
			Active: true,
		})
		return nil
	})
}

// RenameSubcategory changes a subcategory name, keeping its id.
func (s *Service) RenameSubcategory(ctx context.Context, session domain.Session, categoryID, subcategoryID, name string) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subcategory name is required", ErrValidation)
	}

	return s.modify(ctx, categoryID, func(c *domain.Category) error {
		sub := subcategoryByID(c, subcategoryID)
		if sub == nil {
			return ErrSubcategoryNotFound
		}
		if subcategoryNamed(c, name, subcategoryID) != nil {
			return fmt.Errorf("%w: subcategory %q", ErrDuplicateName, name)
		}
		sub.Name = name
		return nil
	})
}

// ToggleSubcategory flips whether a subcategory is offered to reporters.
func (s *Service) ToggleSubcategory(ctx context.Context, session domain.Session, categoryID, subcategoryID string) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}

	return s.modify(ctx, categoryID, func(c *domain.Category) error {
		sub := subcategoryByID(c, subcategoryID)
		if sub == nil {
			return ErrSubcategoryNotFound
		}
		sub.Active = !sub.Active
		return nil
	})
}

// DeleteSubcategory removes a subcategory by id.
func (s *Service) DeleteSubcategory(ctx context.Context, session domain.Session, categoryID, subcategoryID string) (*domain.Category, error) {
	if err := s.policy.Authorize(session, domain.CapManageCategories); err != nil {
		return nil, err
	}

	return s.modify(ctx, categoryID, func(c *domain.Category) error {
		for i := range c.Subcategories {
			if c.Subcategories[i].ID == subcategoryID {
				c.Subcategories = append(c.Subcategories[:i], c.Subcategories[i+1:]...)
				return nil
			}
		}
		return ErrSubcategoryNotFound
	})
}

// Seed installs DefaultCategories when the store is empty and returns how
// many categories were created.
func (s *Service) Seed(ctx context.Context) (int, error) {
	count, err := deadline.Do(ctx, s.timeout, func(ctx context.Context) (int, error) {
		return s.repo.Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		slog.Info("category catalog already populated, skipping seed", "count", count)
		return 0, nil
	}

	created := 0
	for _, input := range DefaultCategories {
		category, err := s.build(input)
		if err != nil {
			return created, err
		}
		err = deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
			return s.repo.Create(ctx, category)
		})
		if err != nil {
			return created, fmt.Errorf("seed category %s: %w", input.Name, err)
		}
		created++
	}

	slog.Info("seeded default categories", "count", created)
	return created, nil
}

func (s *Service) build(input CreateInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.CategoryPriorityNormal
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	status := input.Status
	if status == "" {
		status = domain.CategoryStatusActive
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	now := s.now()
	category := &domain.Category{
		Name:          name,
		Priority:      priority,
		Icon:          strings.TrimSpace(input.Icon),
		Color:         strings.TrimSpace(input.Color),
		Status:        status,
		Subcategories: make([]domain.Subcategory, 0, len(input.Subcategories)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, sub := range input.Subcategories {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		if subcategoryNamed(category, sub, "") != nil {
			return nil, fmt.Errorf("%w: subcategory %q", ErrDuplicateName, sub)
		}
		category.Subcategories = append(category.Subcategories, domain.Subcategory{
			ID:     uuid.New().String(),
			Name:   sub,
			Active: true,
		})
	}
	return category, nil
}

func (s *Service) modify(ctx context.Context, id string, fn func(c *domain.Category) error) (*domain.Category, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.Category, error) {
		return s.repo.Mutate(ctx, id, func(c *domain.Category) error {
			if err := fn(c); err != nil {
				return err
			}
			c.UpdatedAt = s.now()
			return nil
		})
	})
}

func (s *Service) checkUniqueName(ctx context.Context, name, exceptID string) error {
	existing, err := s.repo.List(ctx, Filter{IncludeArchived: true})
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	folded := foldName(name)
	for _, c := range existing {
		if c.ID != exceptID && foldName(c.Name) == folded {
			return fmt.Errorf("%w: category %q", ErrDuplicateName, name)
		}
	}
	return nil
}

func subcategoryByID(c *domain.Category, id string) *domain.Subcategory {
	for i := range c.Subcategories {
		if c.Subcategories[i].ID == id {
			return &c.Subcategories[i]
		}
	}
	return nil
}

func subcategoryNamed(c *domain.Category, name, exceptID string) *domain.Subcategory {
	folded := foldName(name)
	for i := range c.Subcategories {
		if c.Subcategories[i].ID != exceptID && foldName(c.Subcategories[i].Name) == folded {
			return &c.Subcategories[i]
		}
	}
	return nil
}

// foldName maps a name to its case-insensitive comparison key.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

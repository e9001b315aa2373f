package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
)

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	Subject string
	Name    string
	Email   string
}

// Authenticator verifies access tokens issued by the auth provider.
type Authenticator interface {
	ValidateAccessToken(ctx context.Context, token string) (*TokenClaims, error)
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
	Capabilities(role domain.Role) []domain.Capability
}

// Config contains identity settings.
type Config struct {
	BootstrapAdmins []string
	Timeout         time.Duration
}

// Service provides identity business logic.
type Service struct {
	repo      Repository
	auth      Authenticator
	policy    Authorizer
	bootstrap map[string]bool
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator, policy Authorizer, cfg Config) *Service {
	bootstrap := make(map[string]bool, len(cfg.BootstrapAdmins))
	for _, email := range cfg.BootstrapAdmins {
		if email = normalizeEmail(email); email != "" {
			bootstrap[email] = true
		}
	}
	return &Service{
		repo:      repo,
		auth:      auth,
		policy:    policy,
		bootstrap: bootstrap,
		timeout:   cfg.Timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateToken resolves a bearer token into a session. A valid token whose
// subject has no profile yields a session without a role.
func (s *Service) ValidateToken(ctx context.Context, token string) (domain.Session, error) {
	claims, err := s.auth.ValidateAccessToken(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}

	email := normalizeEmail(claims.Email)
	user, err := s.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return domain.Session{UserID: claims.Subject, Name: claims.Name, Email: email}, nil
	}
	if err != nil {
		return domain.Session{}, err
	}

	return domain.Session{UserID: user.ID, Name: user.DisplayName(), Role: user.Role, Email: email}, nil
}

// RegisterInput contains data for creating the caller's profile.
type RegisterInput struct {
	FullName   string
	Email      string
	Role       domain.Role
	Department string
	Skills     []string
}

// Register creates the profile of the session subject. The role is chosen
// once and never changes; Admin is granted only when the token's verified
// email is a bootstrap address. When the token carries an email, the
// profile email must match it.
func (s *Service) Register(ctx context.Context, session domain.Session, input RegisterInput) (*domain.User, error) {
	if session.UserID == "" {
		return nil, fmt.Errorf("%w: anonymous session", access.ErrPermissionDenied)
	}
	if session.Role != "" {
		return nil, ErrUserExists
	}

	verified := normalizeEmail(session.Email)
	email := normalizeEmail(input.Email)
	switch {
	case email == "":
		email = verified
	case verified != "" && email != verified:
		return nil, fmt.Errorf("%w: email does not match the signed-in account", ErrValidation)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	role := input.Role
	switch {
	case verified != "" && s.bootstrap[verified]:
		role = domain.RoleAdmin
	case role == "":
		role = domain.RoleReporter
	case role == domain.RoleAdmin:
		return nil, fmt.Errorf("%w: admin role cannot be self-assigned", access.ErrPermissionDenied)
	case !role.IsValid():
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	now := s.now()
	user := &domain.User{
		ID:           session.UserID,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        email,
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Skills:       cleanSkills(input.Skills),
		Availability: domain.AvailabilityAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.FullName == "" {
		user.FullName = session.Name
	}

	err := deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetUserByID returns a profile without access checks. Used by other
// components to resolve participants.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.User, error) {
		return s.repo.GetUserByID(ctx, id)
	})
}

// GetProfile returns a profile visible to the session user.
func (s *Service) GetProfile(ctx context.Context, session domain.Session, id string) (*domain.User, error) {
	if err := s.authorizeProfile(session, id); err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// Profile is the signed-in user's own view: the stored profile plus what
// the role may do.
type Profile struct {
	*domain.User
	Capabilities []domain.Capability `json:"capabilities"`
}

// Me returns the session user's profile with the role's capabilities.
func (s *Service) Me(ctx context.Context, session domain.Session) (*Profile, error) {
	user, err := s.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Capabilities: s.policy.Capabilities(user.Role)}, nil
}

// UpdateProfileInput holds profile fields to change. Nil fields are kept.
type UpdateProfileInput struct {
	FullName   *string
	Department *string
	Skills     *[]string
}

// UpdateProfile edits a profile. Users edit their own; Admins edit anyone's.
func (s *Service) UpdateProfile(ctx context.Context, session domain.Session, id string, input UpdateProfileInput) (*domain.User, error) {
	if err := s.authorizeProfile(session, id); err != nil {
		return nil, err
	}
	if input.FullName != nil && strings.TrimSpace(*input.FullName) == "" {
		return nil, fmt.Errorf("%w: full name cannot be empty", ErrValidation)
	}

	return s.update(ctx, id, func(u *domain.User) error {
		if input.FullName != nil {
			u.FullName = strings.TrimSpace(*input.FullName)
		}
		if input.Department != nil {
			u.Department = strings.TrimSpace(*input.Department)
		}
		if input.Skills != nil {
			u.Skills = cleanSkills(*input.Skills)
		}
		return nil
	})
}

// SavePushToken stores the device push token of the session user.
func (s *Service) SavePushToken(ctx context.Context, session domain.Session, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: push token is required", ErrValidation)
	}
	_, err := s.update(ctx, session.UserID, func(u *domain.User) error {
		u.PushToken = &token
		return nil
	})
	return err
}

// SetAvailability lets a responder report readiness for new work.
func (s *Service) SetAvailability(ctx context.Context, session domain.Session, availability domain.Availability) (*domain.User, error) {
	if !availability.IsValid() {
		return nil, fmt.Errorf("%w: unknown availability %q", ErrValidation, availability)
	}
	if session.Role != domain.RoleResponder {
		return nil, fmt.Errorf("%w: only responders report availability", access.ErrPermissionDenied)
	}
	return s.update(ctx, session.UserID, func(u *domain.User) error {
		u.Availability = availability
		return nil
	})
}

// SetLocation stores the last known position of a responder.
func (s *Service) SetLocation(ctx context.Context, session domain.Session, loc domain.Location) (*domain.User, error) {
	if session.Role != domain.RoleResponder {
		return nil, fmt.Errorf("%w: only responders share location", access.ErrPermissionDenied)
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	return s.update(ctx, session.UserID, func(u *domain.User) error {
		u.Location = &loc
		return nil
	})
}

// ListUsers returns profiles, optionally restricted to one role. Admin only.
func (s *Service) ListUsers(ctx context.Context, session domain.Session, role *domain.Role) ([]*domain.User, error) {
	if err := s.policy.Authorize(session, domain.CapManageUsers); err != nil {
		return nil, err
	}

	var filter UserFilter
	if role != nil {
		if !role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *role)
		}
		filter.Roles = []domain.Role{*role}
	}
	return s.Find(ctx, filter)
}

// Find lists users matching filter without access checks.
func (s *Service) Find(ctx context.Context, filter UserFilter) ([]*domain.User, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) ([]*domain.User, error) {
		return s.repo.ListUsers(ctx, filter)
	})
}

// ListUserIDsByRole returns the ids of every user holding one of roles.
func (s *Service) ListUserIDsByRole(ctx context.Context, roles ...domain.Role) ([]string, error) {
	users, err := s.Find(ctx, UserFilter{Roles: roles})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *Service) update(ctx context.Context, id string, fn func(u *domain.User) error) (*domain.User, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.User, error) {
		return s.repo.MutateUser(ctx, id, fn)
	})
}

func (s *Service) authorizeProfile(session domain.Session, id string) error {
	if session.UserID != "" && session.UserID == id {
		return nil
	}
	return s.policy.Authorize(session, domain.CapManageUsers)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

// Package accounts manages customer and admin accounts: registration,
// sessions with rotating refresh tokens, profiles and saved addresses.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/auth"
	"perfume-store/internal/logger"
	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

var validate = validator.New()

type Service struct {
	users      store.Users
	tokens     store.RefreshTokens
	issuer     *auth.Issuer
	refreshTTL time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewService(st store.Store, issuer *auth.Issuer, refreshTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:      st.Users(),
		tokens:     st.RefreshTokens(),
		issuer:     issuer,
		refreshTTL: refreshTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         models.User
}

/* =========================
   REGISTRATION & SESSIONS
========================= */

type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Phone    string `validate:"max=30"`
}

// Register creates a customer account. The role is always user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Phone:        in.Phone,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeConflict, "user already exists")
		}
		return nil, apperrors.FromStore(err, "failed to create user")
	}

	s.log.Event(ctx).Str("user_id", user.ID.Hex()).Msg("user registered")
	return s.issue(ctx, *user, nil)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.log.Event(ctx).Str("user_id", user.ID.Hex()).Msg("login rejected")
		return nil, invalidCredentials()
	}
	return s.issue(ctx, *user, nil)
}

func invalidCredentials() error {
	return apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")
}

// Refresh exchanges a live refresh token for a new session and revokes the
// old token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "refresh token required")
	}

	stored, err := s.tokens.FindActive(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load refresh token")
	}
	if !stored.ExpiresAt.After(s.now()) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "refresh token expired")
	}

	user, err := s.users.Get(ctx, stored.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}

	return s.issue(ctx, *user, &stored.ID)
}

// Logout revokes the refresh token when one is given.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	if _, err := s.tokens.RevokeByHash(ctx, auth.HashToken(refreshToken)); err != nil {
		return apperrors.FromStore(err, "failed to revoke refresh token")
	}
	return nil
}

func (s *Service) issue(ctx context.Context, user models.User, replaces *primitive.ObjectID) (*Session, error) {
	access, err := s.issuer.Issue(user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "token generation failed")
	}

	plain, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "token generation failed")
	}

	now := s.now()
	refresh := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashToken(plain),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Insert(ctx, refresh); err != nil {
		return nil, apperrors.FromStore(err, "failed to store refresh token")
	}

	if replaces != nil {
		if err := s.tokens.Revoke(ctx, *replaces, &refresh.ID); err != nil {
			return nil, apperrors.FromStore(err, "failed to rotate refresh token")
		}
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: plain,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

/* =========================
   PROFILE
========================= */

func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}
	return user, nil
}

type ProfileInput struct {
	Name            *string `validate:"omitempty,max=100"`
	Email           *string `validate:"omitempty,email"`
	Phone           *string `validate:"omitempty,max=30"`
	CurrentPassword string
	NewPassword     string `validate:"omitempty,min=6"`
}

// UpdateProfile edits name, email, phone and password. The role is not
// editable here.
func (s *Service) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*models.User, error) {
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			user.Name = name
		}
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil && *in.Email != "" && *in.Email != user.Email {
		existing, err := s.users.GetByEmail(ctx, *in.Email)
		switch {
		case err == nil && existing.ID != user.ID:
			return nil, apperrors.New(apperrors.CodeConflict, "email already in use")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, apperrors.FromStore(err, "failed to check email")
		}
		user.Email = *in.Email
	}
	if in.NewPassword != "" {
		if !auth.CheckPassword(user.PasswordHash, in.CurrentPassword) {
			return nil, apperrors.New(apperrors.CodeValidation, "current password is incorrect").
				WithDetails(map[string]string{"currentPassword": "incorrect"})
		}
		hash, err := auth.HashPassword(in.NewPassword)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "failed to hash password")
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.now()
	if err := s.users.Replace(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeConflict, "email already in use")
		}
		return nil, apperrors.FromStore(err, "failed to update profile")
	}
	return user, nil
}

/* =========================
   ADMIN SEEDING
========================= */

type AdminInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Phone    string
}

// EnsureAdmin creates the admin account or resets an existing account with
// the same email to admin with the given password.
func (s *Service) EnsureAdmin(ctx context.Context, in AdminInput) (*models.User, bool, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, false, apperrors.FromValidation(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, err, "failed to hash password")
	}

	now := s.now()
	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		existing.Name = strings.TrimSpace(in.Name)
		existing.Phone = strings.TrimSpace(in.Phone)
		existing.PasswordHash = hash
		existing.Role = models.RoleAdmin
		existing.UpdatedAt = now
		if err := s.users.Replace(ctx, existing); err != nil {
			return nil, false, apperrors.FromStore(err, "failed to update admin")
		}
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, apperrors.FromStore(err, "failed to load user")
	}

	admin := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Phone:        strings.TrimSpace(in.Phone),
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, admin); err != nil {
		return nil, false, apperrors.FromStore(err, "failed to create admin")
	}
	return admin, true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

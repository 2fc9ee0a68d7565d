package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/auth"
	"perfume-store/internal/models"
	"perfume-store/internal/store/memory"
)

func newService() (*Service, *auth.Issuer) {
	issuer := auth.NewIssuer("test-secret", 15*time.Minute)
	return NewService(memory.New(), issuer, time.Hour, nil), issuer
}

func register(t *testing.T, s *Service, email string) *Session {
	t.Helper()
	session, err := s.Register(context.Background(), RegisterInput{
		Name:     "Noura",
		Email:    email,
		Password: "secret1",
		Phone:    "+966500000000",
	})
	require.NoError(t, err)
	return session
}

func TestRegisterIssuesSessionForCustomer(t *testing.T) {
	s, issuer := newService()
	session := register(t, s, "  Noura@Example.com ")

	assert.Equal(t, "noura@example.com", session.User.Email)
	assert.Equal(t, models.RoleUser, session.User.Role)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, int64(900), session.ExpiresIn)

	id, err := issuer.Parse(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, id.UserID)
	assert.False(t, id.IsAdmin())
}

func TestRegisterRejectsDuplicateEmailCaseInsensitive(t *testing.T) {
	s, _ := newService()
	register(t, s, "dup@example.com")

	_, err := s.Register(context.Background(), RegisterInput{Name: "Other", Email: "DUP@example.com", Password: "secret1"})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newService()

	_, err := s.Register(context.Background(), RegisterInput{Name: "", Email: "bad", Password: "123"})
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))
	details := apperrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestLogin(t *testing.T) {
	s, _ := newService()
	register(t, s, "login@example.com")

	session, err := s.Login(context.Background(), "LOGIN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", session.User.Email)

	_, err = s.Login(context.Background(), "login@example.com", "wrong")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	_, err = s.Login(context.Background(), "ghost@example.com", "secret1")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestRefreshRotatesTokens(t *testing.T) {
	s, _ := newService()
	first := register(t, s, "rotate@example.com")

	second, err := s.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = s.Refresh(context.Background(), first.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	_, err = s.Refresh(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	s, _ := newService()
	session := register(t, s, "expired@example.com")

	s.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err := s.Refresh(context.Background(), session.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	s, _ := newService()
	session := register(t, s, "bye@example.com")

	require.NoError(t, s.Logout(context.Background(), session.RefreshToken))
	_, err := s.Refresh(context.Background(), session.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	assert.NoError(t, s.Logout(context.Background(), ""))
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	session := register(t, s, "profile@example.com")
	register(t, s, "taken@example.com")

	name := "Noura A."
	updated, err := s.UpdateProfile(ctx, session.User.ID, ProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Noura A.", updated.Name)
	assert.Equal(t, models.RoleUser, updated.Role)

	taken := "Taken@example.com"
	_, err = s.UpdateProfile(ctx, session.User.ID, ProfileInput{Email: &taken})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = s.UpdateProfile(ctx, session.User.ID, ProfileInput{NewPassword: "newsecret", CurrentPassword: "nope"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = s.UpdateProfile(ctx, session.User.ID, ProfileInput{NewPassword: "newsecret", CurrentPassword: "secret1"})
	require.NoError(t, err)
	_, err = s.Login(ctx, "profile@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestAddressLifecycleKeepsSingleDefault(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	userID := register(t, s, "addr@example.com").User.ID

	home, err := s.AddAddress(ctx, userID, AddressInput{Title: "Home", Address: "Olaya St 1", City: "Riyadh"})
	require.NoError(t, err)
	assert.True(t, home.IsDefault)

	work, err := s.AddAddress(ctx, userID, AddressInput{Title: "Work", Address: "Tahlia St 9", City: "Jeddah", IsDefault: true})
	require.NoError(t, err)
	assert.True(t, work.IsDefault)

	list, err := s.ListAddresses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsDefault)
	assert.True(t, list[1].IsDefault)

	updated, err := s.UpdateAddress(ctx, userID, home.ID, AddressInput{Title: "Home 2", Address: "Olaya St 2", City: "Riyadh"})
	require.NoError(t, err)
	assert.Equal(t, "Home 2", updated.Title)
	assert.False(t, updated.IsDefault)

	require.NoError(t, s.DeleteAddress(ctx, userID, work.ID))
	list, err = s.ListAddresses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsDefault)

	err = s.DeleteAddress(ctx, userID, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = s.AddAddress(ctx, userID, AddressInput{Title: "x"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestMeNotFound(t *testing.T) {
	s, _ := newService()
	_, err := s.Me(context.Background(), primitive.NewObjectID())
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestEnsureAdminCreatesThenResets(t *testing.T) {
	s, issuer := newService()
	ctx := context.Background()

	admin, created, err := s.EnsureAdmin(ctx, AdminInput{Name: "Admin", Email: "admin@example.com", Password: "admin123"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin())

	register(t, s, "promote@example.com")
	promoted, created, err := s.EnsureAdmin(ctx, AdminInput{Name: "Boss", Email: "Promote@example.com", Password: "boss1234"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	session, err := s.Login(ctx, "promote@example.com", "boss1234")
	require.NoError(t, err)
	id, err := issuer.Parse(session.AccessToken)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
}

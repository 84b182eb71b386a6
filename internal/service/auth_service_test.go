package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	created []*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	f.created = append(f.created, user)
	return nil
}

func (f *fakeUserRepo) add(t *testing.T, email, password string, role models.UserRole, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-" + email,
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       active,
	}
	f.byEmail[email] = user
	f.byID[user.ID] = user
	return user
}

func newAuthService(repo *fakeUserRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "school-admin-api",
	})
}

func TestRegisterIssuesToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	result, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "s3curepass",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, models.RoleTeacher, result.User.Role)
	require.Len(t, repo.created, 1)
	assert.NotEqual(t, "s3curepass", repo.created[0].PasswordHash)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(t, "ada@example.com", "whatever1", models.RoleTeacher, true)
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "s3curepass",
		Role:     "TEACHER",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "s3curepass",
		Role:     "PRINCIPAL",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	user := repo.add(t, "ada@example.com", "s3curepass", models.RoleAdmin, true)
	svc := newAuthService(repo)

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "s3curepass",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "school-admin-api", claims.Issuer)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(t, "ada@example.com", "s3curepass", models.RoleTeacher, true)
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "wrongpass1",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever1",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(t, "ada@example.com", "s3curepass", models.RoleTeacher, false)
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "s3curepass",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	other := NewAuthService(newFakeUserRepo(), nil, nil, AuthConfig{
		Secret:     "different-secret",
		Expiration: time.Hour,
	})

	result, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "s3curepass",
		Role:     "TEACHER",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(result.AccessToken)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

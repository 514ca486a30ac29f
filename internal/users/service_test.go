package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/machinemu/machinemu/internal/platform/httpx"
	"github.com/machinemu/machinemu/internal/users"
)

type recordingRepo struct {
	createdName string
	createdHash string
	createdIDs  []int64

	updatedName *string
	updatedHash *string
	updatedIDs  []int64
}

func (r *recordingRepo) ListUsers(ctx context.Context) ([]users.User, error) { return nil, nil }

func (r *recordingRepo) GetUser(ctx context.Context, id int64) (users.User, error) {
	return users.User{ID: id}, nil
}

func (r *recordingRepo) CreateUser(ctx context.Context, userName, passwordHash string, roleIDs []int64) (users.User, error) {
	r.createdName = userName
	r.createdHash = passwordHash
	r.createdIDs = roleIDs
	return users.User{ID: 1, UserName: userName}, nil
}

func (r *recordingRepo) UpdateUser(ctx context.Context, id int64, userName, passwordHash *string, roleIDs []int64) (users.User, error) {
	r.updatedName = userName
	r.updatedHash = passwordHash
	r.updatedIDs = roleIDs
	return users.User{ID: id}, nil
}

func (r *recordingRepo) DeleteUser(ctx context.Context, id int64) error { return nil }

func TestCreateUserHashesSecret(t *testing.T) {
	repo := &recordingRepo{}
	service := users.NewService(repo)

	_, err := service.CreateUser(context.Background(), "  alice  ", "secret123", []int64{2, 3})
	require.NoError(t, err)

	assert.Equal(t, "alice", repo.createdName)
	assert.Equal(t, []int64{2, 3}, repo.createdIDs)
	assert.NotEqual(t, "secret123", repo.createdHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdHash), []byte("secret123")))
}

func TestCreateUserRejectsBlankName(t *testing.T) {
	service := users.NewService(&recordingRepo{})

	_, err := service.CreateUser(context.Background(), "   ", "secret123", nil)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateUserLeavesOmittedFieldsAlone(t *testing.T) {
	repo := &recordingRepo{}
	service := users.NewService(repo)

	_, err := service.UpdateUser(context.Background(), 1, users.UpdateInput{})
	require.NoError(t, err)

	assert.Nil(t, repo.updatedName)
	assert.Nil(t, repo.updatedHash)
	assert.Nil(t, repo.updatedIDs, "nil role ids must not replace the set")
}

func TestUpdateUserHashesNewSecret(t *testing.T) {
	repo := &recordingRepo{}
	service := users.NewService(repo)

	secret := "changed123"
	_, err := service.UpdateUser(context.Background(), 1, users.UpdateInput{Secret: &secret})
	require.NoError(t, err)

	require.NotNil(t, repo.updatedHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(*repo.updatedHash), []byte(secret)))
}

func TestUpdateUserEmptyRoleListClearsSet(t *testing.T) {
	repo := &recordingRepo{}
	service := users.NewService(repo)

	_, err := service.UpdateUser(context.Background(), 1, users.UpdateInput{RoleIDs: []int64{}})
	require.NoError(t, err)

	require.NotNil(t, repo.updatedIDs, "empty list replaces the set with nothing")
	assert.Empty(t, repo.updatedIDs)
}

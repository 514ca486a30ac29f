package roles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemu/machinemu/internal/platform/httpx"
	"github.com/machinemu/machinemu/internal/roles"
)

type recordingRepo struct {
	createdName string
	createdIDs  []int64
	updatedName *string
	updatedIDs  []int64
	deletedID   int64
}

func (r *recordingRepo) ListRoles(ctx context.Context) ([]roles.Role, error) { return nil, nil }

func (r *recordingRepo) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	return roles.Role{ID: id}, nil
}

func (r *recordingRepo) CreateRole(ctx context.Context, name string, permissionIDs []int64) (roles.Role, error) {
	r.createdName = name
	r.createdIDs = permissionIDs
	return roles.Role{ID: 1, Name: name}, nil
}

func (r *recordingRepo) UpdateRole(ctx context.Context, id int64, name *string, permissionIDs []int64) (roles.Role, error) {
	r.updatedName = name
	r.updatedIDs = permissionIDs
	return roles.Role{ID: id}, nil
}

func (r *recordingRepo) DeleteRole(ctx context.Context, id int64) error {
	r.deletedID = id
	return nil
}

func TestCreateRoleTrimsName(t *testing.T) {
	repo := &recordingRepo{}
	service := roles.NewService(repo)

	_, err := service.CreateRole(context.Background(), "  Operator ", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "Operator", repo.createdName)
	assert.Equal(t, []int64{1, 2, 3}, repo.createdIDs)
}

func TestCreateRoleRejectsBlankName(t *testing.T) {
	service := roles.NewService(&recordingRepo{})

	_, err := service.CreateRole(context.Background(), "   ", nil)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRoleNilPermissionsKeepsSet(t *testing.T) {
	repo := &recordingRepo{}
	service := roles.NewService(repo)

	name := "Renamed"
	_, err := service.UpdateRole(context.Background(), 1, &name, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.updatedName)
	assert.Equal(t, "Renamed", *repo.updatedName)
	assert.Nil(t, repo.updatedIDs)
}

func TestUpdateRoleEmptyPermissionListClearsSet(t *testing.T) {
	repo := &recordingRepo{}
	service := roles.NewService(repo)

	_, err := service.UpdateRole(context.Background(), 1, nil, []int64{})
	require.NoError(t, err)
	require.NotNil(t, repo.updatedIDs)
	assert.Empty(t, repo.updatedIDs)
}

func TestDeleteRoleDelegates(t *testing.T) {
	repo := &recordingRepo{}
	service := roles.NewService(repo)

	require.NoError(t, service.DeleteRole(context.Background(), 9))
	assert.Equal(t, int64(9), repo.deletedID)
}

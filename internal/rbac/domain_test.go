package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemu/machinemu/internal/rbac"
)

func TestVocabularyIsClosed(t *testing.T) {
	vocab := rbac.Vocabulary()
	require.Len(t, vocab, 10)

	seen := make(map[rbac.Permission]struct{}, len(vocab))
	for _, p := range vocab {
		assert.NotEmpty(t, p.String())
		seen[p] = struct{}{}
	}
	assert.Len(t, seen, 10, "vocabulary must not contain duplicates")
}

func TestSeedPolicySplitsManagementFromOperation(t *testing.T) {
	policy := rbac.SeedPolicy()
	require.Contains(t, policy, rbac.RoleAdmin)
	require.Contains(t, policy, rbac.RoleUser)

	assert.ElementsMatch(t, []rbac.Permission{
		rbac.PermManageUsers,
		rbac.PermManageRoles,
		rbac.PermManageCars,
		rbac.PermManageMotorcycles,
	}, policy[rbac.RoleAdmin])

	assert.ElementsMatch(t, []rbac.Permission{
		rbac.PermStartCar,
		rbac.PermStopCar,
		rbac.PermGetCarStatus,
		rbac.PermStartMotorcycle,
		rbac.PermStopMotorcycle,
		rbac.PermDriveMotorcycle,
	}, policy[rbac.RoleUser])

	// Admin manages the fleet but does not operate it.
	for _, p := range policy[rbac.RoleAdmin] {
		assert.NotContains(t, policy[rbac.RoleUser], p)
	}
}

func TestIdentityHasPermission(t *testing.T) {
	id := rbac.Identity{
		UserID:      7,
		UserName:    "admin",
		Permissions: map[string]struct{}{"ManageUsers": {}, "Custom": {}},
	}
	assert.True(t, id.HasPermission(rbac.PermManageUsers))
	assert.False(t, id.HasPermission(rbac.PermDriveMotorcycle))
}

package hierarchy_test

import (
	"testing"

	"certipanel/hierarchy"
	"certipanel/models"
	"certipanel/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserAssignsPath(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]

	assert.Equal(t, hierarchy.Label(root.ID), root.Path)
	assert.Equal(t, 0, root.Depth)
	assert.Nil(t, root.ParentID)

	assert.Equal(t, hierarchy.BuildPath(root.Path, a.ID), a.Path)
	assert.Equal(t, 1, a.Depth)

	assert.Equal(t, hierarchy.BuildPath(a.Path, b.ID), b.Path)
	assert.Equal(t, 2, b.Depth)
	assert.True(t, hierarchy.IsDescendant(b.Path, root.Path))
}

func TestCreateUserRejectsBrokenShapes(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root := users[0]

	dir := hierarchy.NewDirectory(db)

	// A reseller needs a parent.
	_, err := dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     testsupport.UniqueName("orphan"),
		PasswordHash: "x",
		Role:         models.RoleReseller,
	})
	assert.ErrorIs(t, err, hierarchy.ErrBrokenHierarchy)

	// Root never has one.
	rootID := root.ID
	_, err = dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     testsupport.UniqueName("root2"),
		PasswordHash: "x",
		Role:         models.RoleRoot,
		ParentID:     &rootID,
	})
	assert.ErrorIs(t, err, hierarchy.ErrBrokenHierarchy)

	// Parents must exist.
	missing := uint(999999999)
	_, err = dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     testsupport.UniqueName("lost"),
		PasswordHash: "x",
		Role:         models.RoleReseller,
		ParentID:     &missing,
	})
	assert.ErrorIs(t, err, hierarchy.ErrUserNotFound)
}

func TestSubtreeQueries(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]

	dir := hierarchy.NewDirectory(db)

	// A sibling branch under root must not leak into a's subtree.
	rootID := root.ID
	sibling, err := dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     testsupport.UniqueName("sibling"),
		PasswordHash: "x",
		Role:         models.RoleReseller,
		ParentID:     &rootID,
	})
	require.NoError(t, err)

	subtree, err := dir.SubtreeIDs(a)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, subtree)

	children, err := dir.DirectChildren(root.ID)
	require.NoError(t, err)
	ids := make([]uint, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, sibling.ID)
	assert.NotContains(t, ids, b.ID)
}

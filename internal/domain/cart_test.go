package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func TestCartOwner_Validate(t *testing.T) {
	assert.NoError(t, UserOwner("u1").Validate())
	assert.NoError(t, GuestOwner("g1").Validate())

	for _, o := range []CartOwner{{}, {UserID: "u1", GuestID: "g1"}} {
		err := o.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestCartOwner_Identity(t *testing.T) {
	assert.Equal(t, "user:u1", UserOwner("u1").String())
	assert.Equal(t, "guest:g1", GuestOwner("g1").String())
	assert.Equal(t, "g1", GuestOwner("g1").ID())
	assert.True(t, GuestOwner("g1").IsGuest())
	assert.Equal(t, UserOwner("u1"), (&Cart{UserID: "u1"}).Owner())
}

func TestCart_Totals(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{Price: 1000, Quantity: 2},
		{Price: 500, Quantity: 3},
	}}
	assert.Equal(t, int64(3500), c.TotalAmount())
	assert.Equal(t, 5, c.ItemCount())
	assert.Equal(t, int64(0), (&Cart{}).TotalAmount())
}

func TestCart_FindItemIndex(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{ProductID: "p1", VariantID: "v1"},
		{ProductID: "p1"},
	}}
	assert.Equal(t, 0, c.FindItemIndex("p1", "v1"))
	assert.Equal(t, 1, c.FindItemIndex("p1", ""))
	assert.Equal(t, -1, c.FindItemIndex("p1", "v2"))
}

func TestMergeLines_SumsMatchingAndAppendsRest(t *testing.T) {
	user := []CartItem{
		{ProductID: "P1", VariantID: "v1", Quantity: 1},
		{ProductID: "P2", Quantity: 1},
	}
	guest := []CartItem{{ProductID: "P1", VariantID: "v1", Quantity: 2}}

	got := MergeLines(user, guest, 0)

	assert.Equal(t, []CartItem{
		{ProductID: "P1", VariantID: "v1", Quantity: 3},
		{ProductID: "P2", Quantity: 1},
	}, got)
	assert.Equal(t, 1, user[0].Quantity, "user lines must not be mutated")
}

func TestMergeLines_DistinctVariantsStaySeparate(t *testing.T) {
	user := []CartItem{{ProductID: "P1", VariantID: "red", Quantity: 1}}
	guest := []CartItem{
		{ProductID: "P1", VariantID: "blue", Quantity: 1},
		{ProductID: "P1", Quantity: 4},
	}

	got := MergeLines(user, guest, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "blue", got[1].VariantID)
	assert.Equal(t, 4, got[2].Quantity)
}

func TestMergeLines_ClampsToMaxPerLine(t *testing.T) {
	user := []CartItem{{ProductID: "P1", Quantity: 8}}
	guest := []CartItem{{ProductID: "P1", Quantity: 5}, {ProductID: "P2", Quantity: 20}}

	got := MergeLines(user, guest, 10)
	assert.Equal(t, 10, got[0].Quantity)
	assert.Equal(t, 10, got[1].Quantity)
}

func TestMergeLines_KeepsGuestSnapshotWhenUserHasNone(t *testing.T) {
	snap := &VariantSnapshot{Name: "Red / M"}
	got := MergeLines(
		[]CartItem{{ProductID: "P1", VariantID: "v", Quantity: 1}},
		[]CartItem{{ProductID: "P1", VariantID: "v", Quantity: 1, VariantSnapshot: snap}},
		0,
	)
	assert.Same(t, snap, got[0].VariantSnapshot)
}

func TestMergeLines_EmptyGuest(t *testing.T) {
	user := []CartItem{{ProductID: "P1", Quantity: 1}}
	assert.Equal(t, user, MergeLines(user, nil, 0))
	assert.Empty(t, MergeLines(nil, nil, 0))
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 150, ClampQuantity(150, 0))
	assert.Equal(t, 100, ClampQuantity(150, 100))
	assert.Equal(t, 3, ClampQuantity(3, 100))
}

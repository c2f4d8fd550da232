package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("row rejected")
	ee := New(base).
		Component("ingest").
		Category(CategoryValidation).
		Context("box_code", "15-617848").
		Build()

	assert.Equal(t, "row rejected", ee.Error())
	assert.Equal(t, "ingest", ee.Component)
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.Equal(t, "15-617848", ee.GetContext()["box_code"])
	require.ErrorIs(t, ee, base)
}

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := Newf("parcel %q not found", "K3").Build()
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Nil(t, ee.GetContext())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryDatabase).Build()
	b := New(NewStd("b")).Category(CategoryDatabase).Build()
	c := New(NewStd("c")).Category(CategoryGeofence).Build()

	assert.True(t, Is(a, b), "same category should match")
	assert.False(t, Is(a, c), "different category should not match")
}

func TestUnwrapChain(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("no rows")
	wrapped := fmt.Errorf("lookup: %w", sentinel)
	ee := New(wrapped).Category(CategoryNotFound).Build()

	require.ErrorIs(t, ee, sentinel)

	var target *EnhancedError
	require.True(t, As(ee, &target))
	assert.Equal(t, CategoryNotFound, target.Category)
}

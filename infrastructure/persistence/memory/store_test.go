package memory

import (
	"context"
	"testing"

	"kgraph/application/ports"
	"kgraph/infrastructure/persistence/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.AttributeStore {
		return NewStore()
	})
}

func TestStore_WrongType(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.SetAttributes(ctx, "1", map[string]string{"title": "A"}))
	_, err := s.Increment(ctx, "1")
	assert.Error(t, err)
	assert.Error(t, s.AddToSet(ctx, "1", "x"))

	require.NoError(t, s.SetValue(ctx, "label", "abc"))
	_, err = s.Increment(ctx, "label")
	assert.Error(t, err)
}

func TestStore_GetAttributesReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.SetAttributes(ctx, "1", map[string]string{"title": "A"}))
	attrs, err := s.GetAttributes(ctx, "1")
	require.NoError(t, err)
	attrs["title"] = "mutated"

	v, _, err := s.GetAttribute(ctx, "1", "title")
	require.NoError(t, err)
	assert.Equal(t, "A", v)
}

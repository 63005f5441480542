// Package storetest holds the behavioral contract every AttributeStore must meet.
package storetest

import (
	"context"
	"sort"
	"testing"

	"kgraph/application/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises an AttributeStore. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.AttributeStore) {
	t.Run("attributes", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		attrs, err := s.GetAttributes(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, attrs)

		require.NoError(t, s.SetAttributes(ctx, "1", map[string]string{"title": "A", "type": "concept"}))
		require.NoError(t, s.SetAttributes(ctx, "1", map[string]string{"title": "A2"}))

		attrs, err = s.GetAttributes(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"title": "A2", "type": "concept"}, attrs)

		v, ok, err := s.GetAttribute(ctx, "1", "type")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "concept", v)

		_, ok, err = s.GetAttribute(ctx, "1", "color")
		require.NoError(t, err)
		assert.False(t, ok)

		has, err := s.HasAttribute(ctx, "1", "title")
		require.NoError(t, err)
		assert.True(t, has)

		has, err = s.HasAttribute(ctx, "2", "title")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("values and counters", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		exists, err := s.Exists(ctx, "next_id")
		require.NoError(t, err)
		assert.False(t, exists)

		_, ok, err := s.GetValue(ctx, "next_id")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetValue(ctx, "next_id", "0"))
		exists, err = s.Exists(ctx, "next_id")
		require.NoError(t, err)
		assert.True(t, exists)

		n, err := s.Increment(ctx, "next_id")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Increment(ctx, "next_id")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		v, ok, err := s.GetValue(ctx, "next_id")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", v)
	})

	t.Run("sets", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		members, err := s.GetSet(ctx, "1.children")
		require.NoError(t, err)
		assert.Empty(t, members)

		require.NoError(t, s.AddToSet(ctx, "1.children", "2"))
		require.NoError(t, s.AddToSet(ctx, "1.children", "3"))
		require.NoError(t, s.AddToSet(ctx, "1.children", "2"))

		members, err = s.GetSet(ctx, "1.children")
		require.NoError(t, err)
		sort.Strings(members)
		assert.Equal(t, []string{"2", "3"}, members)

		require.NoError(t, s.RemoveFromSet(ctx, "1.children", "2"))
		require.NoError(t, s.RemoveFromSet(ctx, "1.children", "9"))
		require.NoError(t, s.RemoveFromSet(ctx, "7.children", "1"))

		members, err = s.GetSet(ctx, "1.children")
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, members)

		require.NoError(t, s.RemoveFromSet(ctx, "1.children", "3"))
		exists, err := s.Exists(ctx, "1.children")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

package idmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	t.Run("parses comma-separated ids sorted and unique", func(t *testing.T) {
		ids, err := ParseIDList("2000, 1000,1000")
		require.NoError(t, err)
		assert.Equal(t, []int{1000, 2000}, ids)
	})

	t.Run("empty and zero mean no mapping", func(t *testing.T) {
		for _, input := range []string{"", "  ", "0"} {
			ids, err := ParseIDList(input)
			require.NoError(t, err)
			assert.Nil(t, ids)
		}
	})

	t.Run("rejects non-numeric ids", func(t *testing.T) {
		_, err := ParseIDList("1000,www-data")
		assert.Error(t, err)
	})
}

func TestAllocate(t *testing.T) {
	t.Run("rejects invalid kind", func(t *testing.T) {
		_, err := Allocate([]int{1000}, Kind("x"))
		require.Error(t, err)
		assert.ErrorAs(t, err, &InvalidKindError{})
	})

	t.Run("rejects ids outside the space", func(t *testing.T) {
		_, err := Allocate([]int{IDSpaceSize}, KindUser)
		require.Error(t, err)
		assert.ErrorAs(t, err, &IDOutOfRangeError{})

		_, err = Allocate([]int{-1}, KindGroup)
		assert.Error(t, err)
	})

	t.Run("empty set yields nil", func(t *testing.T) {
		mappings, err := Allocate(nil, KindUser)
		require.NoError(t, err)
		assert.Nil(t, mappings)
	})

	t.Run("two passthrough ids produce the documented layout", func(t *testing.T) {
		mappings, err := Allocate([]int{1000, 2000}, KindUser)
		require.NoError(t, err)

		want := []Mapping{
			{Kind: KindUser, ContainerStart: 0, HostStart: 100000, Size: 1000},
			{Kind: KindUser, ContainerStart: 1000, HostStart: 1000, Size: 1},
			{Kind: KindUser, ContainerStart: 1001, HostStart: 101000, Size: 999},
			{Kind: KindUser, ContainerStart: 2000, HostStart: 2000, Size: 1},
			{Kind: KindUser, ContainerStart: 2001, HostStart: 101999, Size: 63535},
		}
		assert.Equal(t, want, mappings)
	})

	t.Run("passthrough at zero skips the leading block", func(t *testing.T) {
		mappings, err := Allocate([]int{0}, KindGroup)
		require.NoError(t, err)

		want := []Mapping{
			{Kind: KindGroup, ContainerStart: 0, HostStart: 0, Size: 1},
			{Kind: KindGroup, ContainerStart: 1, HostStart: 100000, Size: 65535},
		}
		assert.Equal(t, want, mappings)
	})

	t.Run("passthrough at the top edge has no trailing block", func(t *testing.T) {
		mappings, err := Allocate([]int{65535}, KindUser)
		require.NoError(t, err)

		want := []Mapping{
			{Kind: KindUser, ContainerStart: 0, HostStart: 100000, Size: 65535},
			{Kind: KindUser, ContainerStart: 65535, HostStart: 65535, Size: 1},
		}
		assert.Equal(t, want, mappings)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		a, err := Allocate([]int{2000, 1000}, KindUser)
		require.NoError(t, err)
		b, err := Allocate([]int{1000, 2000, 1000}, KindUser)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("container spans partition the full space", func(t *testing.T) {
		sets := [][]int{
			{1000, 2000},
			{0},
			{65535},
			{1},
			{33, 34, 35},
			{0, 65535},
			{5, 500, 5000, 50000},
		}
		for _, ids := range sets {
			mappings, err := Allocate(ids, KindUser)
			require.NoError(t, err)

			next := 0
			for _, m := range mappings {
				assert.Equal(t, next, m.ContainerStart, "no gap or overlap before %+v", m)
				assert.Greater(t, m.Size, 0)
				next = m.ContainerStart + m.Size
			}
			assert.Equal(t, IDSpaceSize, next, "spans must end exactly at the space size")
		}
	})

	t.Run("shift block host offsets grow by consumed size", func(t *testing.T) {
		mappings, err := Allocate([]int{10, 20, 30}, KindUser)
		require.NoError(t, err)

		hostOffset := BaseHostID
		for _, m := range mappings {
			if m.Size == 1 && m.ContainerStart == m.HostStart {
				continue // passthrough singleton
			}
			assert.Equal(t, hostOffset, m.HostStart)
			hostOffset += m.Size
		}
	})
}

func TestMapping_ConfigLine(t *testing.T) {
	m := Mapping{Kind: KindUser, ContainerStart: 0, HostStart: 100000, Size: 1000}
	assert.Equal(t, "lxc.idmap: u 0 100000 1000", m.ConfigLine())
}

func TestSubIDEntries(t *testing.T) {
	t.Run("standard range plus one grant per id", func(t *testing.T) {
		entries := SubIDEntries([]int{2000, 1000}, "root")
		want := []string{
			"root:100000:65536",
			"root:1000:1",
			"root:2000:1",
		}
		assert.Equal(t, want, entries)
	})

	t.Run("empty set yields nil", func(t *testing.T) {
		assert.Nil(t, SubIDEntries(nil, "root"))
	})
}

package confstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
)

const sampleConfig = `arch: amd64
hostname: media-server
memory: 512
lxc.idmap: u 0 100000 65536
lxc.idmap: g 0 100000 65536
mp0: /mnt/pve/storage/volumes/config,mp=/config
unprivileged: 1
`

func TestMergeKind(t *testing.T) {
	newG := []string{
		"lxc.idmap: g 0 100000 1000",
		"lxc.idmap: g 1000 1000 1",
		"lxc.idmap: g 1001 101000 64535",
	}

	t.Run("replaces only lines of the requested kind", func(t *testing.T) {
		merged, err := MergeKind(sampleConfig, idmap.KindGroup, newG)
		require.NoError(t, err)

		assert.Contains(t, merged, "lxc.idmap: u 0 100000 65536")
		assert.NotContains(t, merged, "lxc.idmap: g 0 100000 65536")
		assert.Contains(t, merged, "lxc.idmap: g 1000 1000 1")
		assert.Contains(t, merged, "hostname: media-server")
		assert.Contains(t, merged, "mp0: /mnt/pve/storage/volumes/config,mp=/config")
	})

	t.Run("is idempotent", func(t *testing.T) {
		once, err := MergeKind(sampleConfig, idmap.KindGroup, newG)
		require.NoError(t, err)
		twice, err := MergeKind(once, idmap.KindGroup, newG)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("handles equals-style separators", func(t *testing.T) {
		text := "lxc.idmap = u 0 100000 65536\nhostname: box\n"
		merged, err := MergeKind(text, idmap.KindUser, []string{"lxc.idmap: u 0 200000 65536"})
		require.NoError(t, err)
		assert.NotContains(t, merged, "100000")
		assert.Contains(t, merged, "lxc.idmap: u 0 200000 65536")
		assert.Contains(t, merged, "hostname: box")
	})

	t.Run("empty store gets just the new lines", func(t *testing.T) {
		merged, err := MergeKind("", idmap.KindUser, []string{"lxc.idmap: u 0 100000 65536"})
		require.NoError(t, err)
		assert.Equal(t, "lxc.idmap: u 0 100000 65536\n", merged)
	})

	t.Run("rejects invalid kind before touching anything", func(t *testing.T) {
		_, err := MergeKind(sampleConfig, idmap.Kind("x"), nil)
		assert.ErrorAs(t, err, &idmap.InvalidKindError{})
	})
}

func TestMergeAppendOnly(t *testing.T) {
	t.Run("appends only missing lines", func(t *testing.T) {
		text := "root:100000:65536\nroot:1000:1\n"
		merged := MergeAppendOnly(text, []string{"root:100000:65536", "root:2000:1"})
		assert.Equal(t, "root:100000:65536\nroot:1000:1\nroot:2000:1\n", merged)
	})

	t.Run("repeat merge is a no-op", func(t *testing.T) {
		entries := []string{"root:100000:65536", "root:1000:1"}
		once := MergeAppendOnly("", entries)
		twice := MergeAppendOnly(once, entries)
		assert.Equal(t, once, twice)
	})
}

func TestParseIDMapLines(t *testing.T) {
	t.Run("extracts segments of one kind sorted by container start", func(t *testing.T) {
		text := "lxc.idmap: u 1001 101000 999\nlxc.idmap: g 0 100000 65536\nlxc.idmap: u 0 100000 1000\nlxc.idmap: u 1000 1000 1\n"
		segments, err := ParseIDMapLines(text, idmap.KindUser)
		require.NoError(t, err)

		require.Len(t, segments, 3)
		assert.Equal(t, 0, segments[0].ContainerStart)
		assert.Equal(t, 1000, segments[1].ContainerStart)
		assert.Equal(t, 1001, segments[2].ContainerStart)
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		text := "lxc.idmap: u 0 nope 65536\nlxc.idmap: u 0 100000\nlxc.idmap: u 0 100000 65536\n"
		segments, err := ParseIDMapLines(text, idmap.KindUser)
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Equal(t, 65536, segments[0].Size)
	})
}

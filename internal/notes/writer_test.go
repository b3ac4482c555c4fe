package notes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	descriptions map[int]string
	setErr       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{descriptions: make(map[int]string)}
}

func (f *fakeClient) Status(_ context.Context, _ int) (string, error) {
	return "running", nil
}

func (f *fakeClient) SetDescription(_ context.Context, vmid int, text string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.descriptions[vmid] = text
	return nil
}

func TestWrite(t *testing.T) {
	t.Run("writes rendered notes", func(t *testing.T) {
		client := newFakeClient()
		applied := Write(context.Background(), client, 101, Content{ApplicationID: "app"}, zap.NewNop())

		assert.True(t, applied)
		assert.Contains(t, client.descriptions[101], "<!-- oci-lxc-deployer:managed -->")
		assert.Contains(t, client.descriptions[101], "Application ID: app")
	})

	t.Run("degrades on collaborator failure", func(t *testing.T) {
		client := newFakeClient()
		client.setErr = errors.New("pct unavailable")

		applied := Write(context.Background(), client, 101, Content{ApplicationID: "app"}, zap.NewNop())
		assert.False(t, applied)
	})

	t.Run("oversized notes drop the icon before the call", func(t *testing.T) {
		client := newFakeClient()
		content := Content{
			ApplicationID: "app",
			IconBase64:    strings.Repeat("A", DescriptionLimit),
			IconMIMEType:  "image/png",
		}

		applied := Write(context.Background(), client, 101, content, zap.NewNop())
		require.True(t, applied)
		assert.LessOrEqual(t, len(client.descriptions[101]), DescriptionLimit)
	})
}

func TestAddAddon(t *testing.T) {
	t.Run("writes updated description", func(t *testing.T) {
		client := newFakeClient()
		desc := "<!-- oci-lxc-deployer:managed -->\n## Details"

		err := AddAddon(context.Background(), client, 101, desc, "samba", zap.NewNop())
		require.NoError(t, err)
		assert.Contains(t, client.descriptions[101], AddonMarker("samba"))
	})

	t.Run("skips write when marker already present", func(t *testing.T) {
		client := newFakeClient()
		desc := AddonMarker("samba") + "\nbody"

		err := AddAddon(context.Background(), client, 101, desc, "samba", zap.NewNop())
		require.NoError(t, err)
		assert.Empty(t, client.descriptions)
	})

	t.Run("propagates collaborator failure", func(t *testing.T) {
		client := newFakeClient()
		client.setErr = errors.New("pct unavailable")

		err := AddAddon(context.Background(), client, 101, "body", "samba", zap.NewNop())
		assert.Error(t, err)
	})
}

package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/lxcconf"
)

func TestStripOCIPrefix(t *testing.T) {
	assert.Equal(t, "docker.io/library/nginx:1.25", StripOCIPrefix("docker://docker.io/library/nginx:1.25"))
	assert.Equal(t, "ghcr.io/app:1", StripOCIPrefix("oci://ghcr.io/app:1"))
	assert.Equal(t, "docker.io/library/nginx", StripOCIPrefix("docker.io/library/nginx"))
}

func TestContent_Render(t *testing.T) {
	content := Content{
		VMID:            "101",
		OCIImage:        "docker://docker.io/library/nginx:1.25",
		ApplicationID:   "nginx",
		ApplicationName: "Nginx Web Server",
		Version:         "1.25.0",
		Hostname:        "web-box",
		Username:        "www-data",
		UID:             "33",
		GID:             "33",
	}

	text := content.Render(false)

	t.Run("starts with the managed marker", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(text, "<!-- oci-lxc-deployer:managed -->"))
	})

	t.Run("hidden markers carry the structured fields", func(t *testing.T) {
		assert.Contains(t, text, "<!-- oci-lxc-deployer:oci-image docker.io/library/nginx:1.25 -->")
		assert.Contains(t, text, "<!-- oci-lxc-deployer:application-id nginx -->")
		assert.Contains(t, text, "<!-- oci-lxc-deployer:username www-data -->")
		assert.Contains(t, text, "<!-- oci-lxc-deployer:uid 33 -->")
		assert.Contains(t, text, "<!-- oci-lxc-deployer:gid 33 -->")
	})

	t.Run("visible body is readable markdown", func(t *testing.T) {
		assert.Contains(t, text, "# Nginx Web Server")
		assert.Contains(t, text, "## Nginx Web Server")
		assert.Contains(t, text, "Application ID: nginx")
		assert.Contains(t, text, "Version: 1.25.0")
		assert.Contains(t, text, "OCI image: docker.io/library/nginx:1.25")
		assert.Contains(t, text, "Log file: /var/log/lxc/web-box-101.log")
	})

	t.Run("no icon without icon data", func(t *testing.T) {
		assert.NotContains(t, text, "<img")
	})
}

func TestContent_RenderRoundTrip(t *testing.T) {
	// Text written for exactly {application_id, version} must recover
	// exactly those two fields and nothing else.
	content := Content{VMID: "200", ApplicationID: "demo", Version: "1.2.0"}
	text := content.Render(true)

	// Feed the rendering through the parser the way Proxmox stores it:
	// a single description line with escaped newlines.
	escaped := strings.ReplaceAll(text, "\n", `\n`)
	cfg := lxcconf.Parse("description: " + escaped + "\n")

	assert.True(t, cfg.IsManaged)
	assert.Equal(t, "demo", cfg.ApplicationID)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Empty(t, cfg.ApplicationName)
	assert.Empty(t, cfg.OCIImage)
	assert.Empty(t, cfg.Addons)
	assert.Empty(t, cfg.Username)
}

func TestContent_RenderWithinLimit(t *testing.T) {
	t.Run("keeps icon when under the cap", func(t *testing.T) {
		content := Content{VMID: "101", ApplicationID: "app", IconBase64: "aWNvbg==", IconMIMEType: "image/png"}
		text, dropped := content.RenderWithinLimit()
		assert.False(t, dropped)
		assert.Contains(t, text, "<img")
	})

	t.Run("drops icon when over the cap", func(t *testing.T) {
		content := Content{
			VMID:          "101",
			ApplicationID: "app",
			IconBase64:    strings.Repeat("A", DescriptionLimit),
			IconMIMEType:  "image/png",
		}
		text, dropped := content.RenderWithinLimit()
		assert.True(t, dropped)
		assert.NotContains(t, text, "<img")
		assert.LessOrEqual(t, len(text), DescriptionLimit)
	})
}

func TestInsertAddonMarker(t *testing.T) {
	t.Run("inserts before first visible header", func(t *testing.T) {
		desc := "<!-- oci-lxc-deployer:managed -->\n# App\n\n## Details\nbody"
		updated := InsertAddonMarker(desc, "samba-shares")

		lines := strings.Split(updated, "\n")
		idx := -1
		for i, l := range lines {
			if l == AddonMarker("samba-shares") {
				idx = i
			}
		}
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, "## Details", lines[idx+1])
	})

	t.Run("falls back to after last hidden marker", func(t *testing.T) {
		desc := "<!-- oci-lxc-deployer:managed -->\n<!-- oci-lxc-deployer:application-id app -->\nbody"
		updated := InsertAddonMarker(desc, "backup")

		lines := strings.Split(updated, "\n")
		assert.Equal(t, "<!-- oci-lxc-deployer:application-id app -->", lines[1])
		assert.Equal(t, AddonMarker("backup"), lines[2])
	})

	t.Run("prepends when nothing matches", func(t *testing.T) {
		updated := InsertAddonMarker("plain text", "backup")
		assert.True(t, strings.HasPrefix(updated, AddonMarker("backup")+"\n"))
	})

	t.Run("idempotent", func(t *testing.T) {
		desc := "<!-- oci-lxc-deployer:managed -->\n## Details"
		once := InsertAddonMarker(desc, "samba")
		twice := InsertAddonMarker(once, "samba")
		assert.Equal(t, once, twice)
	})
}

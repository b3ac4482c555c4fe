// Package notes builds and updates the container description: hidden
// machine markers for later recovery plus a human-readable markdown
// body.
package notes

import (
	"fmt"
	"strings"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/lxcconf"
)

// DescriptionLimit is the hard cap Proxmox enforces on description
// text. Renderings over the cap drop the inline icon.
const DescriptionLimit = 8192

// Content carries everything that can appear in a container's notes.
// Empty fields are simply omitted from the rendering.
type Content struct {
	VMID            string
	OCIImage        string
	TemplatePath    string
	ApplicationID   string
	ApplicationName string
	Version         string
	DeployerURL     string
	VEContext       string
	Hostname        string
	IconBase64      string
	IconMIMEType    string
	Username        string
	UID             string
	GID             string
}

// StripOCIPrefix removes the docker:// or oci:// transport prefix for
// display.
func StripOCIPrefix(image string) string {
	for _, prefix := range []string{"docker://", "oci://"} {
		if strings.HasPrefix(image, prefix) {
			return strings.TrimPrefix(image, prefix)
		}
	}
	return image
}

func marker(field, value string) string {
	return fmt.Sprintf("<!-- %s:%s %s -->", lxcconf.MarkerNamespace, field, value)
}

// hiddenMarkers emits the machine-readable comment block. The managed
// marker is unconditional; everything else appears only when set.
func (c Content) hiddenMarkers() []string {
	lines := []string{fmt.Sprintf("<!-- %s:managed -->", lxcconf.MarkerNamespace)}

	if image := StripOCIPrefix(c.OCIImage); image != "" {
		lines = append(lines, marker("oci-image", image))
	}
	if c.ApplicationID != "" {
		lines = append(lines, marker("application-id", c.ApplicationID))
	}
	if c.ApplicationName != "" {
		lines = append(lines, marker("application-name", c.ApplicationName))
	}
	if c.Version != "" {
		lines = append(lines, marker("version", c.Version))
	}
	if c.DeployerURL != "" && c.VEContext != "" {
		lines = append(lines, marker("log-url", fmt.Sprintf("%s/logs/%s/%s", c.DeployerURL, c.VMID, c.VEContext)))
	}
	if c.IconBase64 != "" && c.IconMIMEType != "" {
		// The icon itself lives in the visible body; the marker only
		// records that one exists.
		lines = append(lines, marker("icon-url", fmt.Sprintf("data:%s;base64,...", c.IconMIMEType)))
	}
	if c.Username != "" {
		lines = append(lines, marker("username", c.Username))
	}
	if c.UID != "" {
		lines = append(lines, marker("uid", c.UID))
	}
	if c.GID != "" {
		lines = append(lines, marker("gid", c.GID))
	}
	return lines
}

// visible emits the markdown body shown in the Proxmox UI.
func (c Content) visible(includeIcon bool) []string {
	header := c.ApplicationName
	if header == "" {
		header = c.ApplicationID
	}
	if header == "" {
		header = "Container"
	}

	lines := []string{"# " + header, ""}

	if includeIcon && c.IconBase64 != "" && c.IconMIMEType != "" {
		alt := c.ApplicationName
		if alt == "" {
			alt = c.ApplicationID
		}
		lines = append(lines,
			fmt.Sprintf(`<img src="data:%s;base64,%s" width="16" height="16" alt="%s"/>`, c.IconMIMEType, c.IconBase64, alt),
			"")
	}

	if c.DeployerURL != "" {
		lines = append(lines, fmt.Sprintf("Managed by [oci-lxc-deployer](%s/).", c.DeployerURL))
	} else {
		lines = append(lines, "Managed by **oci-lxc-deployer**.")
	}

	if c.ApplicationName != "" {
		lines = append(lines, "", "## "+c.ApplicationName)
	}
	if c.ApplicationID != "" && c.ApplicationID != c.ApplicationName {
		lines = append(lines, "", "Application ID: "+c.ApplicationID)
	}
	if c.Version != "" {
		lines = append(lines, "", "Version: "+c.Version)
	}

	if image := StripOCIPrefix(c.OCIImage); image != "" {
		lines = append(lines, "", "OCI image: "+image)
	} else if c.TemplatePath != "" {
		lines = append(lines, "", "LXC template: "+c.TemplatePath)
	}

	if c.Hostname != "" {
		lines = append(lines, "", fmt.Sprintf("Log file: /var/log/lxc/%s-%s.log", c.Hostname, c.VMID))
	}

	if c.DeployerURL != "" && c.VEContext != "" {
		lines = append(lines, "", "## Links",
			fmt.Sprintf("- [Console Logs](%s/logs/%s/%s)", c.DeployerURL, c.VMID, c.VEContext))
	}

	return lines
}

// Render produces the full description text, optionally with the
// inline icon.
func (c Content) Render(includeIcon bool) string {
	lines := append(c.hiddenMarkers(), c.visible(includeIcon)...)
	return strings.Join(lines, "\n")
}

// RenderWithinLimit prefers the icon rendering but falls back to the
// icon-less one when the result would exceed the description cap.
func (c Content) RenderWithinLimit() (text string, iconDropped bool) {
	withIcon := c.Render(true)
	if len(withIcon) <= DescriptionLimit {
		return withIcon, false
	}
	return c.Render(false), true
}

// AddonMarker builds the hidden marker registering one addon.
func AddonMarker(addonID string) string {
	return marker("addon", addonID)
}

// HasAddonMarker reports whether the description already registers the
// addon.
func HasAddonMarker(description, addonID string) bool {
	return strings.Contains(description, fmt.Sprintf("%s:addon %s", lxcconf.MarkerNamespace, addonID))
}

// InsertAddonMarker inserts the addon marker into an existing
// description: before the first visible "##" header when there is one,
// otherwise after the last hidden marker, otherwise at the top.
// Inserting an already-present addon is a no-op.
func InsertAddonMarker(description, addonID string) string {
	if HasAddonMarker(description, addonID) {
		return description
	}

	markerLine := AddonMarker(addonID)
	lines := strings.Split(description, "\n")

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "##") {
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:i]...)
			out = append(out, markerLine)
			out = append(out, lines[i:]...)
			return strings.Join(out, "\n")
		}
	}

	lastMarker := -1
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "<!--") && strings.Contains(s, lxcconf.MarkerNamespace+":") {
			lastMarker = i
		}
	}
	if lastMarker >= 0 {
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:lastMarker+1]...)
		out = append(out, markerLine)
		out = append(out, lines[lastMarker+1:]...)
		return strings.Join(out, "\n")
	}

	return markerLine + "\n" + description
}

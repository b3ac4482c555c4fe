package lxcconf

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
)

// MountPoint is one mpN entry of a container config.
type MountPoint struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Options string `json:"options,omitempty"`
}

// ParsedConfig is the structured view of one container config file.
// Unset string fields stay empty; unset numeric fields stay nil.
// It is a fresh value per parse and carries no identity of its own.
type ParsedConfig struct {
	Hostname  string `json:"hostname,omitempty"`
	IsManaged bool   `json:"is_managed"`

	OCIImage        string   `json:"oci_image,omitempty"`
	ApplicationID   string   `json:"application_id,omitempty"`
	ApplicationName string   `json:"application_name,omitempty"`
	Version         string   `json:"version,omitempty"`
	Addons          []string `json:"addons,omitempty"`

	Username string `json:"username,omitempty"`
	UID      string `json:"uid,omitempty"`
	GID      string `json:"gid,omitempty"`

	IDMappings  []idmap.Mapping `json:"id_mappings,omitempty"`
	MountPoints []MountPoint    `json:"mount_points,omitempty"`

	Memory        *int   `json:"memory,omitempty"`
	Cores         *int   `json:"cores,omitempty"`
	RootFSStorage string `json:"rootfs_storage,omitempty"`
	DiskSize      string `json:"disk_size,omitempty"`
	Bridge        string `json:"bridge,omitempty"`

	Unprivileged bool `json:"unprivileged"`
}

var (
	hostnamePattern    = regexp.MustCompile(`(?m)^hostname:\s*(.+?)\s*$`)
	idmapLinePattern   = regexp.MustCompile(`(?m)^lxc\.idmap\s*[:=]\s*([ug])\s+(\d+)\s+(\d+)\s+(\d+)\s*$`)
	mountPointPattern  = regexp.MustCompile(`(?m)^mp(\d+):\s*(.+?),mp=([^,]+)(?:,(.*))?$`)
	descriptionPattern = regexp.MustCompile(`(?m)^description:\s*(.*)$`)
	memoryPattern      = regexp.MustCompile(`(?m)^memory:\s*(\d+)\s*$`)
	coresPattern       = regexp.MustCompile(`(?m)^cores:\s*(\d+)\s*$`)
	rootfsPattern      = regexp.MustCompile(`(?m)^rootfs:\s*([^:]+):([^,\n]+)(?:,size=(\d+)([GMK]?))?`)
	bridgePattern      = regexp.MustCompile(`(?m)^net\d+:.*bridge=([^,\s]+)`)
	unprivPattern      = regexp.MustCompile(`(?m)^unprivileged\s*[:=]\s*(\S+)`)
)

// Parse builds the structured view of a raw container config.
func Parse(raw string) *ParsedConfig {
	normalized, decoded := Views(raw)

	cfg := &ParsedConfig{
		IsManaged:    managedPattern.MatchString(normalized) || managedPattern.MatchString(decoded),
		Unprivileged: ParseUnprivileged(normalized),
	}

	if m := hostnamePattern.FindStringSubmatch(normalized); len(m) == 2 {
		cfg.Hostname = strings.TrimSpace(m[1])
	}

	cfg.OCIImage = extractField(normalized, decoded, ociImagePatterns)
	cfg.ApplicationID = extractField(normalized, decoded, appIDPatterns)
	cfg.ApplicationName = extractField(normalized, decoded, appNamePatterns)
	cfg.Version = extractField(normalized, decoded, versionPatterns)
	cfg.Addons = extractAddons(normalized, decoded)
	cfg.Username = extractField(normalized, decoded, usernamePatterns)
	cfg.UID = extractField(normalized, decoded, uidPatterns)
	cfg.GID = extractField(normalized, decoded, gidPatterns)

	cfg.IDMappings = ParseIDMappings(normalized)
	cfg.MountPoints = ParseMountPoints(normalized)

	if m := memoryPattern.FindStringSubmatch(normalized); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			cfg.Memory = &v
		}
	}
	if m := coresPattern.FindStringSubmatch(normalized); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			cfg.Cores = &v
		}
	}
	if m := rootfsPattern.FindStringSubmatch(normalized); len(m) >= 3 {
		cfg.RootFSStorage = m[1]
		if len(m) >= 5 && m[3] != "" {
			unit := m[4]
			if unit == "" {
				unit = "G"
			}
			cfg.DiskSize = m[3] + unit
		}
	}
	if m := bridgePattern.FindStringSubmatch(normalized); len(m) == 2 {
		cfg.Bridge = m[1]
	}

	return cfg
}

// ParseIDMappings extracts all lxc.idmap entries, both kinds, in file
// order.
func ParseIDMappings(text string) []idmap.Mapping {
	var mappings []idmap.Mapping
	for _, m := range idmapLinePattern.FindAllStringSubmatch(text, -1) {
		cStart, err1 := strconv.Atoi(m[2])
		hStart, err2 := strconv.Atoi(m[3])
		size, err3 := strconv.Atoi(m[4])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		mappings = append(mappings, idmap.Mapping{
			Kind:           idmap.Kind(m[1]),
			ContainerStart: cStart,
			HostStart:      hStart,
			Size:           size,
		})
	}
	return mappings
}

// ParseMountPoints extracts mpN entries ordered by index.
func ParseMountPoints(text string) []MountPoint {
	var mounts []MountPoint
	for _, m := range mountPointPattern.FindAllStringSubmatch(text, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		mounts = append(mounts, MountPoint{
			Index:   idx,
			Source:  m[2],
			Target:  m[3],
			Options: m[4],
		})
	}
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].Index < mounts[j].Index })
	return mounts
}

// Description returns the decoded description field, or empty when the
// config has none.
func Description(raw string) string {
	m := descriptionPattern.FindStringSubmatch(raw)
	if len(m) != 2 {
		return ""
	}
	_, decoded := Views(m[1])
	return decoded
}

// ParseUnprivileged reads the unprivileged flag. Containers this
// deployer manages are unprivileged unless the config says otherwise.
func ParseUnprivileged(text string) bool {
	m := unprivPattern.FindStringSubmatch(text)
	if len(m) != 2 {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(m[1])) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

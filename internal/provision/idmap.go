// Package provision orchestrates subordinate-ID setup for one
// container: grant entries in the flat subuid/subgid store, idmap
// lines in the container config, and the resolved host ID for the
// first requested identity.
package provision

import (
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/confstore"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/lxcconf"
)

// SubIDOwner is the host account granted the subordinate ranges.
const SubIDOwner = "root"

// IDMapRequest describes one setup run for a single kind.
type IDMapRequest struct {
	// Kind selects user or group mappings.
	Kind idmap.Kind
	// IDs is the raw comma-separated passthrough list; empty or "0"
	// means no mapping is requested.
	IDs string
	// VMID is the container identity. Empty or non-numeric skips the
	// container config update but still resolves a host ID.
	VMID string
	// SubIDPath is the flat grant store (/etc/subuid or /etc/subgid).
	SubIDPath string
	// ConfigDir holds the per-container config files.
	ConfigDir string
}

// IDMapResult reports what a setup run did.
type IDMapResult struct {
	// Requested is the parsed, sorted passthrough set.
	Requested []int
	// Mappings is the computed full-space idmap, nil when nothing was
	// requested.
	Mappings []idmap.Mapping
	// MappedHostID is the host ID the first requested identity
	// resolves to. Only meaningful when Requested is non-empty.
	MappedHostID int
	// ConfigUpdated reports whether the container config was rewritten.
	ConfigUpdated bool
	// Skipped is set when the request asked for no mapping; no store
	// was touched.
	Skipped bool
}

// SetupIDMap performs the full setup flow for one kind. An empty ID
// set short-circuits before any store mutation: it means "no mapping
// requested", not zero-length work.
func SetupIDMap(req IDMapRequest, store *confstore.Store, logger *zap.Logger) (*IDMapResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !req.Kind.Valid() {
		return nil, idmap.InvalidKindError{Kind: req.Kind}
	}

	ids, err := idmap.ParseIDList(req.IDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		logger.Info("no mapping requested, skipping store updates",
			zap.String("kind", string(req.Kind)))
		return &IDMapResult{Skipped: true}, nil
	}

	logger.Info("setting up passthrough mappings",
		zap.String("kind", string(req.Kind)),
		zap.Ints("ids", ids))

	if err := store.AppendEntries(req.SubIDPath, idmap.SubIDEntries(ids, SubIDOwner)); err != nil {
		return nil, fmt.Errorf("provision: update %s: %w", req.SubIDPath, err)
	}

	result := &IDMapResult{Requested: ids}

	var configText string
	if _, numErr := strconv.Atoi(req.VMID); numErr == nil {
		mappings, err := idmap.Allocate(ids, req.Kind)
		if err != nil {
			return nil, err
		}
		configPath := filepath.Join(req.ConfigDir, req.VMID+".conf")
		if err := store.UpdateConfigKind(configPath, req.Kind, idmap.ConfigLines(mappings)); err != nil {
			return nil, fmt.Errorf("provision: update %s: %w", configPath, err)
		}
		result.Mappings = mappings
		result.ConfigUpdated = true

		if text, err := store.ReadConfig(configPath); err == nil {
			configText = text
		}
	} else if req.VMID != "" {
		logger.Warn("vmid is not numeric, skipping container config update",
			zap.String("vmid", req.VMID))
	} else {
		logger.Info("vmid not provided, skipping container config update")
	}

	unprivileged := lxcconf.ParseUnprivileged(configText)

	// Resolve against the just-computed mappings, not a re-read of the
	// config: the clustered config filesystem may serve stale reads
	// right after a write.
	segments := result.Mappings
	if len(segments) == 0 && configText != "" {
		if parsed, err := confstore.ParseIDMapLines(configText, req.Kind); err == nil {
			segments = parsed
		}
	}
	if len(segments) == 0 && unprivileged {
		segments = idmap.DefaultSegments(req.Kind)
	}

	result.MappedHostID = idmap.ResolveHostID(ids[0], segments, unprivileged)
	logger.Info("resolved host id",
		zap.String("kind", string(req.Kind)),
		zap.Int("container_id", ids[0]),
		zap.Int("host_id", result.MappedHostID))

	return result, nil
}

package notes

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/pct"
)

// Write renders the notes within the description cap and pushes them
// to the container. A failing collaborator call degrades to "not
// applied" with a diagnostic; it never propagates as an error, so bulk
// operations keep going.
func Write(ctx context.Context, client pct.Client, vmid int, content Content, logger *zap.Logger) (applied bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if content.VMID == "" {
		content.VMID = strconv.Itoa(vmid)
	}

	text, iconDropped := content.RenderWithinLimit()
	if iconDropped {
		logger.Warn("notes exceed description limit, omitting inline icon",
			zap.Int("vmid", vmid),
			zap.Int("limit", DescriptionLimit))
	}

	if err := client.SetDescription(ctx, vmid, text); err != nil {
		logger.Warn("failed to write notes", zap.Int("vmid", vmid), zap.Error(err))
		return false
	}

	logger.Info("notes written", zap.Int("vmid", vmid))
	return true
}

// AddAddon reads the current description, inserts the addon marker,
// and writes the result back. Unlike Write, a failure here is an
// error: the caller asked for one specific mutation.
func AddAddon(ctx context.Context, client pct.Client, vmid int, description, addonID string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if HasAddonMarker(description, addonID) {
		logger.Info("addon marker already present", zap.Int("vmid", vmid), zap.String("addon", addonID))
		return nil
	}

	updated := InsertAddonMarker(description, addonID)
	if err := client.SetDescription(ctx, vmid, updated); err != nil {
		return err
	}

	logger.Info("addon marker added", zap.Int("vmid", vmid), zap.String("addon", addonID))
	return nil
}

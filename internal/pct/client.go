// Package pct wraps the Proxmox container tool this deployer shells
// out to. Every call is bounded by a timeout; failures surface as
// errors for the caller to degrade on, never as aborts.
package pct

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultStatusTimeout bounds a single status query.
const DefaultStatusTimeout = 5 * time.Second

// Client is the surface the rest of the deployer consumes. Tests swap
// in fakes.
type Client interface {
	// Status returns the short status token ("running", "stopped").
	Status(ctx context.Context, vmid int) (string, error)
	// SetDescription replaces the container's description text.
	SetDescription(ctx context.Context, vmid int, text string) error
}

// ExecClient runs the real pct binary.
type ExecClient struct {
	binary        string
	statusTimeout time.Duration
	logger        *zap.Logger
}

// NewExecClient creates a client for the given pct binary path.
func NewExecClient(binary string, statusTimeout time.Duration, logger *zap.Logger) *ExecClient {
	if binary == "" {
		binary = "pct"
	}
	if statusTimeout <= 0 {
		statusTimeout = DefaultStatusTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecClient{binary: binary, statusTimeout: statusTimeout, logger: logger}
}

// Status runs `pct status <vmid>` and parses the "status: <token>"
// output.
func (c *ExecClient) Status(ctx context.Context, vmid int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.binary, "status", strconv.Itoa(vmid)).Output()
	if err != nil {
		return "", fmt.Errorf("pct status %d: %w", vmid, err)
	}

	status := parseStatusOutput(string(out))
	if status == "" {
		return "", fmt.Errorf("pct status %d: empty output", vmid)
	}
	return status, nil
}

// parseStatusOutput extracts the status token from `pct status` output
// of the form "status: running".
func parseStatusOutput(out string) string {
	text := strings.TrimSpace(out)
	if idx := strings.Index(text, "status:"); idx >= 0 {
		text = strings.TrimSpace(text[idx+len("status:"):])
	}
	return text
}

// SetDescription runs `pct set <vmid> --description <text>`.
func (c *ExecClient) SetDescription(ctx context.Context, vmid int, text string) error {
	cmd := exec.CommandContext(ctx, c.binary, "set", strconv.Itoa(vmid), "--description", text)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pct set %d: %w: %s", vmid, err, strings.TrimSpace(string(out)))
	}
	c.logger.Debug("description updated", zap.Int("vmid", vmid), zap.Int("bytes", len(text)))
	return nil
}

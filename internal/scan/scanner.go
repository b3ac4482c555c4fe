// Package scan walks the container config directory and builds the
// inventory of deployer-managed containers. Individual unreadable
// files are skipped; a bulk scan never fails because of one bad entry.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/lxcconf"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/pct"
)

// Worker pool caps for batched status queries.
const (
	listStatusWorkers = 8
	findStatusWorkers = 4
)

// Container is one managed container as reported by a scan.
type Container struct {
	VMID            int      `json:"vm_id"`
	Hostname        string   `json:"hostname,omitempty"`
	OCIImage        string   `json:"oci_image,omitempty"`
	ApplicationID   string   `json:"application_id,omitempty"`
	ApplicationName string   `json:"application_name,omitempty"`
	Version         string   `json:"version,omitempty"`
	Addons          []string `json:"addons,omitempty"`
	Username        string   `json:"username,omitempty"`
	UID             string   `json:"uid,omitempty"`
	GID             string   `json:"gid,omitempty"`
	Memory          *int     `json:"memory,omitempty"`
	Cores           *int     `json:"cores,omitempty"`
	RootFSStorage   string   `json:"rootfs_storage,omitempty"`
	DiskSize        string   `json:"disk_size,omitempty"`
	Bridge          string   `json:"bridge,omitempty"`
	Status          string   `json:"status,omitempty"`

	Config *lxcconf.ParsedConfig `json:"-"`
}

// Scanner reads configs from one directory and queries status through
// a pct client.
type Scanner struct {
	dir         string
	client      pct.Client
	logger      *zap.Logger
	listWorkers int
}

// NewScanner creates a scanner over dir.
func NewScanner(dir string, client pct.Client, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{dir: dir, client: client, logger: logger, listWorkers: listStatusWorkers}
}

// SetStatusWorkers overrides the worker cap for bulk listings.
func (s *Scanner) SetStatusWorkers(n int) {
	if n > 0 {
		s.listWorkers = n
	}
}

// ListManaged returns all managed containers that reference an OCI
// image, with their current status filled in where available.
func (s *Scanner) ListManaged(ctx context.Context) ([]Container, error) {
	containers := s.scan(func(c *Container) bool {
		return c.OCIImage != ""
	})

	s.fillStatuses(ctx, containers, s.listWorkers)
	return containers, nil
}

// FindRunningByAppID returns the managed containers with the given
// application ID that are currently running. The status check runs
// only for matching candidates.
func (s *Scanner) FindRunningByAppID(ctx context.Context, appID string) ([]Container, error) {
	if appID == "" {
		return nil, fmt.Errorf("scan: application id is required")
	}

	matching := s.scan(func(c *Container) bool {
		return c.ApplicationID == appID
	})

	s.fillStatuses(ctx, matching, findStatusWorkers)

	var running []Container
	for _, c := range matching {
		if c.Status == "running" {
			running = append(running, c)
		}
	}
	return running, nil
}

// scan reads every numeric *.conf in stable vmid order, keeping
// managed configs the keep predicate accepts.
func (s *Scanner) scan(keep func(*Container) bool) []Container {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("config directory unreadable", zap.String("dir", s.dir), zap.Error(err))
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".conf" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var containers []Container
	for _, name := range names {
		vmid, err := strconv.Atoi(name[:len(name)-len(".conf")])
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Debug("skipping unreadable config", zap.String("file", name), zap.Error(err))
			continue
		}
		text := string(data)

		// Cheap pre-filter before the full parse.
		if !lxcconf.IsManaged(text) {
			continue
		}

		cfg := lxcconf.Parse(text)
		c := Container{
			VMID:            vmid,
			Hostname:        cfg.Hostname,
			OCIImage:        cfg.OCIImage,
			ApplicationID:   cfg.ApplicationID,
			ApplicationName: cfg.ApplicationName,
			Version:         cfg.Version,
			Addons:          cfg.Addons,
			Username:        cfg.Username,
			UID:             cfg.UID,
			GID:             cfg.GID,
			Memory:          cfg.Memory,
			Cores:           cfg.Cores,
			RootFSStorage:   cfg.RootFSStorage,
			DiskSize:        cfg.DiskSize,
			Bridge:          cfg.Bridge,
			Config:          cfg,
		}
		if keep != nil && !keep(&c) {
			continue
		}
		containers = append(containers, c)
	}

	return containers
}

// fillStatuses queries status for each container on a bounded pool and
// writes results back in input order. Failures leave the status unset.
func (s *Scanner) fillStatuses(ctx context.Context, containers []Container, maxWorkers int) {
	if len(containers) == 0 || s.client == nil {
		return
	}

	if len(containers) == 1 {
		containers[0].Status = s.queryStatus(ctx, containers[0].VMID)
		return
	}

	workers := maxWorkers
	if len(containers) < workers {
		workers = len(containers)
	}

	jobs := make(chan int)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				containers[i].Status = s.queryStatus(ctx, containers[i].VMID)
			}
			done <- struct{}{}
		}()
	}
	for i := range containers {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < workers; w++ {
		<-done
	}
}

func (s *Scanner) queryStatus(ctx context.Context, vmid int) string {
	status, err := s.client.Status(ctx, vmid)
	if err != nil {
		s.logger.Debug("status query failed", zap.Int("vmid", vmid), zap.Error(err))
		return ""
	}
	return status
}

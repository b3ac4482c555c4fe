package config

import (
	"os"
	"strconv"
)

// LoadFromEnv applies environment overrides on top of cfg.
// LXC_MANAGER_PVE_LXC_DIR is the historical override the test harness
// and hook scripts already use; the OCI_LXC_DEPLOYER_* names cover the
// rest.
func LoadFromEnv(cfg *Config) {
	if dir := os.Getenv("LXC_MANAGER_PVE_LXC_DIR"); dir != "" {
		cfg.PVE.LXCConfigDir = dir
	}
	if p := os.Getenv("OCI_LXC_DEPLOYER_SUBUID_PATH"); p != "" {
		cfg.PVE.SubUIDPath = p
	}
	if p := os.Getenv("OCI_LXC_DEPLOYER_SUBGID_PATH"); p != "" {
		cfg.PVE.SubGIDPath = p
	}
	if bin := os.Getenv("OCI_LXC_DEPLOYER_PCT_BINARY"); bin != "" {
		cfg.PVE.PctBinary = bin
	}
	if port := os.Getenv("OCI_LXC_DEPLOYER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("OCI_LXC_DEPLOYER_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}
	if workers := os.Getenv("OCI_LXC_DEPLOYER_SCAN_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Scan.Workers = w
		}
	}
}

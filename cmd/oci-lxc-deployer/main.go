// cmd/oci-lxc-deployer/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/api"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/compose"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/config"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/confstore"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/lxcconf"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/notes"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/pct"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/provision"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/scan"
)

const usage = `Usage: oci-lxc-deployer <command> [flags]

Commands:
  serve            run the HTTP inventory server
  list             list managed containers as JSON
  find             find running containers for an application id
  setup-idmap      grant subordinate IDs and write idmap config lines
  write-notes      render and set a container's description notes
  add-addon        record an installed addon in a container's notes
  extract-volumes  pull volume mappings from a compose file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = runServe(args)
	case "list":
		err = runList(args)
	case "find":
		err = runFind(args)
	case "setup-idmap":
		err = runSetupIDMap(args)
	case "write-notes":
		err = runWriteNotes(args)
	case "add-addon":
		err = runAddAddon(args)
	case "extract-volumes":
		err = runExtractVolumes(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func newScanner(cfg *config.Config, logger *zap.Logger) *scan.Scanner {
	client := pct.NewExecClient(cfg.PVE.PctBinary, cfg.PVE.StatusTimeout, logger)
	scanner := scan.NewScanner(cfg.PVE.LXCConfigDir, client, logger)
	scanner.SetStatusWorkers(cfg.Scan.Workers)
	return scanner
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server := api.NewServer(cfg, logger, newScanner(cfg, logger))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		os.Exit(0)
	}()

	return server.Start()
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	containers, err := newScanner(cfg, logger).ListManaged(context.Background())
	if err != nil {
		return err
	}
	return printJSON(containers)
}

func runFind(args []string) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	appID := fs.String("application-id", "", "application id to look for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *appID == "" {
		return fmt.Errorf("--application-id is required")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	containers, err := newScanner(cfg, logger).FindRunningByAppID(context.Background(), *appID)
	if err != nil {
		return err
	}
	return printJSON(containers)
}

func runSetupIDMap(args []string) error {
	fs := flag.NewFlagSet("setup-idmap", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	kind := fs.String("kind", "", `mapping kind: "u" or "g"`)
	ids := fs.String("ids", "", "comma-separated container IDs to pass through")
	vmid := fs.String("vmid", "", "container VMID (optional, skips config update when absent)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *kind == "" {
		return fmt.Errorf("--kind is required")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	k := idmap.Kind(*kind)
	subIDPath := cfg.PVE.SubUIDPath
	if k == idmap.KindGroup {
		subIDPath = cfg.PVE.SubGIDPath
	}

	result, err := provision.SetupIDMap(provision.IDMapRequest{
		Kind:      k,
		IDs:       *ids,
		VMID:      *vmid,
		SubIDPath: subIDPath,
		ConfigDir: cfg.PVE.LXCConfigDir,
	}, confstore.NewStore(logger), logger)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runWriteNotes(args []string) error {
	fs := flag.NewFlagSet("write-notes", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	vmid := fs.Int("vmid", 0, "container VMID")
	ociImage := fs.String("oci-image", "", "OCI image reference")
	templatePath := fs.String("template", "", "LXC template path (alternative to --oci-image)")
	appID := fs.String("application-id", "", "application id")
	appName := fs.String("application-name", "", "human-readable application name")
	version := fs.String("app-version", "", "application version")
	hostname := fs.String("hostname", "", "container hostname")
	deployerURL := fs.String("deployer-url", "", "management UI link")
	veContext := fs.String("ve-context", "", "virtual environment context for links")
	iconBase64 := fs.String("icon-base64", "", "inline icon, base64 encoded")
	iconMIME := fs.String("icon-mime", "image/png", "icon MIME type")
	username := fs.String("username", "", "application user name")
	uid := fs.String("uid", "", "application user id")
	gid := fs.String("gid", "", "application group id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vmid <= 0 {
		return fmt.Errorf("--vmid is required")
	}
	if *ociImage == "" && *templatePath == "" {
		return fmt.Errorf("--oci-image or --template is required")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := pct.NewExecClient(cfg.PVE.PctBinary, cfg.PVE.StatusTimeout, logger)
	applied := notes.Write(context.Background(), client, *vmid, notes.Content{
		OCIImage:        *ociImage,
		TemplatePath:    *templatePath,
		ApplicationID:   *appID,
		ApplicationName: *appName,
		Version:         *version,
		Hostname:        *hostname,
		DeployerURL:     *deployerURL,
		VEContext:       *veContext,
		IconBase64:      *iconBase64,
		IconMIMEType:    *iconMIME,
		Username:        *username,
		UID:             *uid,
		GID:             *gid,
	}, logger)

	return printJSON(map[string]interface{}{"vmid": *vmid, "applied": applied})
}

func runAddAddon(args []string) error {
	fs := flag.NewFlagSet("add-addon", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	vmid := fs.Int("vmid", 0, "container VMID")
	addonID := fs.String("addon", "", "addon id to record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vmid <= 0 {
		return fmt.Errorf("--vmid is required")
	}
	if *addonID == "" {
		return fmt.Errorf("--addon is required")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := confstore.NewStore(logger)
	configText, err := store.ReadConfig(filepath.Join(cfg.PVE.LXCConfigDir, fmt.Sprintf("%d.conf", *vmid)))
	if err != nil {
		return fmt.Errorf("read container config: %w", err)
	}

	client := pct.NewExecClient(cfg.PVE.PctBinary, cfg.PVE.StatusTimeout, logger)
	return notes.AddAddon(context.Background(), client, *vmid,
		lxcconf.Description(configText), *addonID, logger)
}

func runExtractVolumes(args []string) error {
	fs := flag.NewFlagSet("extract-volumes", flag.ExitOnError)
	file := fs.String("file", "", "path to the compose file")
	project := fs.String("project", "", "explicit project name")
	hostname := fs.String("hostname", "", "hostname fallback for the project name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	result, err := compose.Extract(content, *project, *hostname)
	if err != nil {
		return err
	}
	return printJSON(result)
}

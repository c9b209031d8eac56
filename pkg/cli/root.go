package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ydideh810/nidamllm/pkg/bundle"
	"github.com/ydideh810/nidamllm/pkg/config"
	"github.com/ydideh810/nidamllm/pkg/engine"
	"github.com/ydideh810/nidamllm/pkg/errdefs"
	"github.com/ydideh810/nidamllm/pkg/infra/docker"
	"github.com/ydideh810/nidamllm/pkg/infra/logger"
	"github.com/ydideh810/nidamllm/pkg/infra/store"
	"github.com/ydideh810/nidamllm/pkg/mirror"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

type RootCommand struct {
	cmd       *cobra.Command
	cfg       *config.Config
	engine    *engine.Engine
	opts      *OutputOptions
	formatStr string

	// fetcher overrides the git fetcher, for tests.
	fetcher mirror.Fetcher
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{
		opts: NewOutputOptions(),
	}

	cmd := &cobra.Command{
		Use:   "nidam",
		Short: "nidam - model recipe repositories and runtime bundles",
		Long: `nidam manages catalog repositories of model recipes,
keeps local mirrors of them, resolves model references against the
combined catalog, and materializes runtime bundles for resolved
recipes.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: root.persistentPreRunE,
	}

	root.registerPersistentFlags(cmd.PersistentFlags())

	root.cmd = cmd

	root.addSubCommands()

	return root
}

func (r *RootCommand) registerPersistentFlags(pflags *pflag.FlagSet) {
	pflags.StringVarP(&r.formatStr, "output", "o", "table", "Output format (table, json, yaml)")
	pflags.BoolVarP(&r.opts.Quiet, "quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (default: ~/.nidam/config.toml)")

	viper.BindPFlag("output", pflags.Lookup("output"))
	viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	viper.BindPFlag("config", pflags.Lookup("config"))
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	r.opts.Format = OutputFormat(r.formatStr)

	cfgPath := viper.GetString("config")
	var err error
	r.cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
	})

	if err := os.MkdirAll(r.cfg.General.HomeDir, 0o755); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}

	// Bundle metadata lives in SQLite; fall back to memory when the
	// database cannot be opened.
	var bundleStore bundle.Store
	sqliteStore, err := store.NewBundleSQLiteStore(r.cfg.DatabasePath())
	if err != nil {
		logger.Default().Warn("failed to open bundle database, using memory store", "error", err)
		bundleStore = bundle.NewMemoryStore()
	} else {
		bundleStore = sqliteStore
	}

	var builder bundle.Builder = bundle.LocalBuilder{}
	if r.cfg.Bundle.Builder == "docker" {
		cli, err := docker.NewSDKClient()
		if err != nil {
			logger.Default().Warn("docker unavailable, building bundles locally", "error", err)
		} else {
			builder = &bundle.DockerBuilder{Client: cli}
		}
	}

	r.engine, err = engine.New(r.cfg, bundleStore, builder, r.fetcher)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	return nil
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewVersionCommand(r))
	r.cmd.AddCommand(NewRepoCommand(r))
	r.cmd.AddCommand(NewModelCommand(r))
	r.cmd.AddCommand(NewSyncCommand(r))
	r.cmd.AddCommand(NewBuildCommand(r))
	r.cmd.AddCommand(NewBundleCommand(r))
	r.cmd.AddCommand(NewCleanCommand(r))
}

func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

func (r *RootCommand) Engine() *engine.Engine {
	return r.engine
}

func (r *RootCommand) Config() *config.Config {
	return r.cfg
}

func (r *RootCommand) OutputOptions() *OutputOptions {
	return r.opts
}

func (r *RootCommand) SetOutputWriter(w interface{ Write([]byte) (int, error) }) {
	r.opts.Writer = w
}

// SetFetcher swaps the source fetcher, for tests.
func (r *RootCommand) SetFetcher(f mirror.Fetcher) {
	r.fetcher = f
}

func (r *RootCommand) Execute() error {
	return r.cmd.Execute()
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

func Execute() {
	root := NewRootCommand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(err, root.OutputOptions())
		os.Exit(errdefs.ExitCode(err))
	}
}

func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}

func GetVersion() string {
	return cliVersion
}

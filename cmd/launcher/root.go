package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fossabot/launcher-2/internal/config"
	"github.com/fossabot/launcher-2/internal/logging"
	"github.com/fossabot/launcher-2/internal/platform"
)

const usageDesc = `Keeps a local copy of an application in step with its published
manifest, then starts it. Artifacts that are missing or whose size or
checksum differ from the manifest are downloaded before hand-off.`

type rootOpts struct {
	confFile     string
	dataDir      string
	manifestFile string
	verbosity    string
	logFormat    string

	cfg      *config.Config
	info     *platform.Info
	log      *logrus.Logger
	embedded []byte
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOpts{}

	rootCmd := &cobra.Command{
		Use:           "launcher",
		Short:         "Synchronize and start an application",
		Long:          usageDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          opts.runLaunch,
	}
	rootCmd.PersistentPreRunE = opts.rootPreRun

	rootCmd.PersistentFlags().StringVarP(&opts.confFile, "config", "c", "", "Lua config file (default launcher.lua next to the executable)")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Directory holding the manifest and cache")
	rootCmd.PersistentFlags().StringVar(&opts.manifestFile, "manifest", "", "Use this descriptor instead of the embedded one")
	rootCmd.PersistentFlags().StringVarP(&opts.verbosity, "verbosity", "v", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")

	_ = rootCmd.RegisterFlagCompletionFunc("verbosity", completeArgList([]string{"debug", "info", "warn", "error"}))
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", completeArgList([]string{"text", "json"}))

	rootCmd.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func (opts *rootOpts) rootPreRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}
	opts.info = info

	path := opts.confFile
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.NewParser(platform.Static(*info)).ParseFile(ctx, path)
	if err != nil {
		return errors.New(config.FormatError(err, opts.verbosity == "debug"))
	}

	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.verbosity != "" {
		cfg.Log.Level = opts.verbosity
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts.log = log

	opts.embedded = embeddedManifest
	if opts.manifestFile != "" {
		data, err := os.ReadFile(opts.manifestFile)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		opts.embedded = data
	}

	log.WithFields(logrus.Fields{
		"platform": info.String(),
		"config":   path,
	}).Debug("Launcher configured")
	return nil
}

// defaultConfigPath is launcher.lua beside the executable, falling back
// to the working directory
func defaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return config.DefaultFileName
	}
	return filepath.Join(filepath.Dir(exe), config.DefaultFileName)
}

func completeArgList(list []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return list, cobra.ShellCompDirectiveNoFileComp
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/abdala/minicon/internal/version"
	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/engine"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/ui"
)

// configFile is the optional per-directory configuration overlay.
const configFile = ".minicon.toml"

// NewRootCmd builds the minicon command line.
func NewRootCmd() *cobra.Command {
	cfg := config.New()

	var (
		verbose         bool
		debug           bool
		quiet           bool
		logFile         string
		noExcludeCommon bool
		ldconfigOn      bool
		ldconfigOff     bool
		pluginSpecs     []string
		pluginAll       bool
		showVersion     bool
	)

	cmd := &cobra.Command{
		Use:   "minicon [flags] [command...] [-- command args...]",
		Short: "Minimize a container root filesystem to a declared command set",
		Long: `minicon reduces a root filesystem to the files needed to run a declared
set of commands. Starting from symbolic command names it discovers the full
runtime closure: symlink chains, dynamic libraries, script interpreters and
accesses observed under the syscall tracer. The reduced tree can be emitted
as a tarball ready to import as a container image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("minicon version %s\n", version.Version)
				fmt.Printf("  commit: %s\n", version.Commit)
				fmt.Printf("  built:  %s\n", version.Date)
				return nil
			}

			logging.SetupLogger(logging.Options{
				Verbose: verbose,
				Debug:   debug,
				Quiet:   quiet,
				LogFile: logFile,
			})

			if err := cfg.LoadFile(configFile); err != nil {
				return err
			}

			if noExcludeCommon {
				cfg.ExcludeCommon = false
			}
			if ldconfigOff {
				cfg.Ldconfig = false
			} else if ldconfigOn {
				cfg.Ldconfig = true
			}

			if pluginAll {
				cfg.Plugins.ActivateAll()
			}
			for _, spec := range pluginSpecs {
				if err := cfg.Plugins.Activate(spec); err != nil {
					return err
				}
			}

			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				cfg.Targets = args[:dash]
				cfg.Commands = args[dash:]
			} else {
				cfg.Targets = args
			}

			if len(cfg.Targets) == 0 && len(cfg.Commands) == 0 &&
				len(cfg.Executions) == 0 && len(cfg.Includes) == 0 {
				return cmd.Help()
			}

			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer eng.Teardown()

			report, err := eng.Run()
			if err != nil {
				return err
			}

			log.Info().Str("root", report.OutputRoot).Msg("run complete")

			if !quiet && cfg.TarFile != "-" {
				fmt.Print(ui.RenderSummary(report, ui.IsTerminal(os.Stdout)))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.OutputRoot, "rootfs", "r", "", "Directory to build the reduced tree at")
	flags.StringVarP(&cfg.TarFile, "tarfile", "t", "", "Write the archived tree to this file ('-' for stdout)")
	flags.StringArrayVarP(&cfg.Excludes, "exclude", "e", nil, "Exclude paths matching this regex prefix (repeatable)")
	flags.StringArrayVarP(&cfg.Includes, "include", "I", nil, "Force-include this path at startup (repeatable)")
	flags.BoolVarP(&noExcludeCommon, "no-exclude-common", "C", false, "Do not seed the default exclusions (/sys, /tmp, /dev, /proc)")
	flags.StringArrayVarP(&cfg.Executions, "execution", "E", nil, "Trace this command line under the syscall tracer (repeatable)")
	flags.BoolVarP(&ldconfigOn, "ldconfig", "l", false, "Rewrite the loader configuration in the output tree (default)")
	flags.BoolVarP(&ldconfigOff, "no-ldconfig", "L", false, "Do not rewrite the loader configuration")
	flags.StringArrayVar(&pluginSpecs, "plugin", nil, "Activate a plugin, e.g. strace:mode=slim:seconds=5 (repeatable)")
	flags.BoolVar(&pluginAll, "plugin-all", false, "Activate every known plugin")
	flags.StringVarP(&logFile, "logfile", "g", "", "Also write the log to this file ('auto' for the state directory)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only report errors")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Report progress")
	flags.BoolVar(&debug, "debug", false, "Report debugging detail")
	flags.BoolVarP(&cfg.Force, "force", "f", false, "Reuse a non-empty output root")
	flags.BoolVarP(&showVersion, "version", "V", false, "Print version information")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "Discover the closure without writing the output tree")
	flags.BoolVar(&cfg.KeepTmp, "keep-tmp", false, "Keep the temporary directory on exit")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("minicon version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}

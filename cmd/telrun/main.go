package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(os.Stdout)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

// buildRoot assembles the CLI. The root command itself runs the supervisor;
// a single positional argument runs that one service in the foreground.
func buildRoot(out io.Writer) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	checkFlags := &CheckFlags{}
	initFlags := &InitFlags{}
	statusFlags := &StatusFlags{}
	eventsFlags := &EventsFlags{}

	telrunCommand := command{global: globalFlags, out: out}

	root := createRootCommand(telrunCommand, globalFlags, runFlags)
	root.AddCommand(
		createCheckCommand(telrunCommand, checkFlags),
		createInitCommand(telrunCommand, initFlags),
		createInteractiveCommand(telrunCommand, runFlags),
		createStatusCommand(telrunCommand, statusFlags),
		createEventsCommand(telrunCommand, eventsFlags),
	)
	return root
}

func createRootCommand(c command, globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "telrun [service]",
		Short: "Launch and supervise the message-analysis pipeline",
		Long: `Telrun runs the local pipeline services as supervised child processes:
it gates startup on environment checks, launches the services in order,
monitors their health endpoints, and shuts everything down within a bound.

Examples:
  telrun                     # check, launch and supervise every service
  telrun aggregator          # run one service in the foreground
  telrun check               # run the preflight gate only
  telrun interactive         # supervise with a command prompt
  telrun status --api-url=http://127.0.0.1:8090/api`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.RunService(args[0], *runFlags)
			}
			return c.Run(*runFlags)
		},
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to telrun.toml (optional)")
	root.PersistentFlags().StringVar(&globalFlags.Root, "root", "", "project root (defaults to TELRUN_ROOT or cwd)")

	root.Flags().BoolVar(&runFlags.Interactive, "interactive", false, "drive the run from a console prompt")
	root.Flags().BoolVar(&runFlags.NoServer, "no-server", false, "disable the control API listener")
	root.Flags().BoolVar(&runFlags.SkipChecks, "skip-checks", false, "launch without the preflight gate")

	return root
}

func createCheckCommand(c command, checkFlags *CheckFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the preflight gate and exit",
		Long: `Check validates the environment the services need: the worker runtime,
the settings file and its required variables, the dependency manifest, the
database, and the message broker. Every check runs even after a failure so
one pass shows the whole picture.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Check(*checkFlags)
		},
	}
	cmd.Flags().BoolVarP(&checkFlags.Quiet, "quiet", "q", false, "only set the exit code")
	return cmd
}

func createInitCommand(c command, initFlags *InitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Check the environment and initialize the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Init(*initFlags)
		},
	}
	cmd.Flags().BoolVar(&initFlags.Force, "force", false, "overwrite an existing telrun.toml")
	return cmd
}

func createInteractiveCommand(c command, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Supervise every service with a command prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := *runFlags
			flags.Interactive = true
			return c.Run(flags)
		},
	}
	cmd.Flags().BoolVar(&runFlags.NoServer, "no-server", false, "disable the control API listener")
	cmd.Flags().BoolVar(&runFlags.SkipChecks, "skip-checks", false, "launch without the preflight gate")
	return cmd
}

func createStatusCommand(c command, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service states from a running supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*statusFlags)
		},
	}
	cmd.Flags().StringVar(&statusFlags.Name, "name", "", "limit to one service")
	cmd.Flags().StringVar(&statusFlags.APIUrl, "api-url", "", "control API URL (e.g. http://127.0.0.1:8090/api)")
	cmd.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

func createEventsCommand(c command, eventsFlags *EventsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent lifecycle events from a running supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Events(*eventsFlags)
		},
	}
	cmd.Flags().StringVar(&eventsFlags.Name, "name", "", "limit to one service")
	cmd.Flags().IntVar(&eventsFlags.Limit, "limit", 50, "maximum events to show")
	cmd.Flags().StringVar(&eventsFlags.APIUrl, "api-url", "", "control API URL (e.g. http://127.0.0.1:8090/api)")
	cmd.Flags().DurationVar(&eventsFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

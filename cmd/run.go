package cmd

import (
	"fmt"
	"log/slog"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/liquid"
	"github.com/cottand/liquid/tycheck"
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:          "run ./folder|file.lq function [args...]",
	Short:        "Check a liquid program, then run one of its functions",
	RunE:         runRun,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
}

var (
	runLogLevel *int
	runNoCheck  *bool
)

func init() {
	runLogLevel = RunCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	runNoCheck = RunCmd.Flags().Bool("no-check", false, "run without checking the program first")
}

func runRun(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*runLogLevel))

	t, err := resolveTarget(args[0])
	if err != nil {
		return err
	}
	pkg, err := t.load()
	if err != nil {
		return err
	}
	if err := errorsOf(pkg); err != nil {
		return err
	}
	if !*runNoCheck {
		report, err := pkg.Check(cmd.Context(), tycheck.Options{})
		if err != nil {
			return err
		}
		if !report.OK() {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), pkg.FormatReport(report, false))
			return errCheckFailed
		}
	}

	var fnArgs []any
	for _, arg := range args[2:] {
		parsed, err := liquid.ParseValue(arg)
		if err != nil {
			return fmt.Errorf("argument %d: %w", len(fnArgs), err)
		}
		fnArgs = append(fnArgs, parsed)
	}
	res, err := pkg.Run(args[1], fnArgs...)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), res)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/liquid"
	"github.com/cottand/liquid/tycheck"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check ./folder|file.lq",
	Short:        "Check the refinement types of a liquid program",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	checkLogLevel    *int
	checkParallel    *bool
	checkWatch       *bool
	checkConstraints *bool
)

var errCheckFailed = errors.New("check failed")

func init() {
	checkLogLevel = CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	checkParallel = CheckCmd.Flags().BoolP("parallel", "p", false, "check functions concurrently")
	checkWatch = CheckCmd.Flags().BoolP("watch", "w", false, "check again whenever a .lq file changes")
	checkConstraints = CheckCmd.Flags().BoolP("constraints", "c", false, "print the constraints deferred because of holes")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*checkLogLevel))

	t, err := resolveTarget(args[0])
	if err != nil {
		return err
	}
	if !*checkWatch {
		return checkOnce(cmd.Context(), cmd.OutOrStdout(), t)
	}
	return watch(cmd.Context(), cmd.OutOrStdout(), t)
}

func checkOnce(ctx context.Context, out io.Writer, t target) error {
	pkg, err := t.load()
	if err != nil {
		return err
	}
	return checkPackage(ctx, out, pkg)
}

func checkPackage(ctx context.Context, out io.Writer, pkg *liquid.Package) error {
	if err := errorsOf(pkg); err != nil {
		return err
	}
	report, err := pkg.Check(ctx, tycheck.Options{Parallel: *checkParallel})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(out, pkg.FormatReport(report, *checkConstraints))
	if !report.OK() {
		return errCheckFailed
	}
	_, _ = fmt.Fprintf(out, "ok: %d functions checked\n", len(report.Funcs))
	return nil
}

// watch checks t, and then again on every change to a .lq file in its
// folder, until ctx is done
func watch(ctx context.Context, out io.Writer, t target) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not watch %s: %w", t.dir, err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", t.dir, err)
	}

	report := func() {
		if err := checkOnce(ctx, out, t); err != nil {
			_, _ = fmt.Fprintln(out, err)
		}
	}
	report()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !t.watches(ev) {
				continue
			}
			cmdLogger.Debug("source changed", "file", ev.Name, "op", ev.Op.String())
			_, _ = fmt.Fprintf(out, "--- %s changed\n", filepath.Base(ev.Name))
			report()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", t.dir, err)
		}
	}
}

func (t target) watches(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Base(ev.Name)
	if len(t.files) == 0 {
		return strings.HasSuffix(name, liquid.FileExt)
	}
	for _, file := range t.files {
		if file == name {
			return true
		}
	}
	return false
}

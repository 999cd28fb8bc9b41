package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/liquid"
	"github.com/spf13/cobra"
)

var BuildCmd = &cobra.Command{
	Use:          "build ./folder|file.lq",
	Short:        "Transpile a liquid program to a Go module",
	RunE:         runBuild,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

// goVersion is the go directive of generated modules
const goVersion = "1.23"

var (
	buildOutPath  *string
	buildLogLevel *int
)

func init() {
	buildOutPath = BuildCmd.Flags().StringP("out", "o", "out", "output path")
	buildLogLevel = BuildCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

func buildAt(pkg *liquid.Package, outPath string) error {
	if err := errorsOf(pkg); err != nil {
		return err
	}
	if err := pkg.WriteTranspiled(outPath); err != nil {
		return fmt.Errorf("could not transpile package: %w", err)
	}
	if err := writeGoMod(filepath.Join(outPath, "go.mod"), pkg.Name()); err != nil {
		return fmt.Errorf("could not write go.mod: %w", err)
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*buildLogLevel))

	t, err := resolveTarget(args[0])
	if err != nil {
		return err
	}
	err = os.Mkdir(*buildOutPath, os.ModePerm)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	pkg, err := t.load()
	if err != nil {
		return err
	}
	return buildAt(pkg, *buildOutPath)
}

// writeGoMod makes the transpiled package buildable with go build, as module
// liquid/<name>
func writeGoMod(at string, name string) error {
	content := fmt.Sprintf("module liquid/%s\n\ngo %s\n", name, goVersion)
	if err := os.WriteFile(path.Clean(at), []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", at, err)
	}
	return nil
}

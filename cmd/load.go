package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/liquid"
)

var cmdLogger = log.Section("cmd")

// target is a folder of .lq files, or a single one
type target struct {
	dir   string
	files []string
}

func resolveTarget(arg string) (target, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return target{}, fmt.Errorf("could not get absolute path of target: %w", err)
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return target{}, fmt.Errorf("could not stat target: %w", err)
	}
	if stat.IsDir() {
		return target{dir: abs}, nil
	}
	return target{dir: filepath.Dir(abs), files: []string{filepath.Base(abs)}}, nil
}

func (t target) load() (*liquid.Package, error) {
	folderFS, ok := os.DirFS(t.dir).(liquid.SourceFS)
	if !ok {
		return nil, fmt.Errorf("cannot read directory %s", t.dir)
	}
	pkg, err := liquid.LoadPackage(folderFS, liquid.LoadSettings{Files: t.files})
	if err != nil {
		return nil, fmt.Errorf("could not load package (this is a bug and not a compile error): %w", err)
	}
	cmdLogger.Debug("loaded target", "dir", t.dir, "files", len(t.files))
	return pkg, nil
}

// errorsOf returns an error listing the parse and lowering errors of pkg, if any
func errorsOf(pkg *liquid.Package) error {
	if !pkg.Errors().HasError() {
		return nil
	}
	sb := &strings.Builder{}
	for _, lqError := range pkg.Errors().Sorted() {
		sb.WriteString("\n")
		sb.WriteString(pkg.FormatError(lqError))
	}
	return fmt.Errorf("errors found during compilation:%s", sb.String())
}

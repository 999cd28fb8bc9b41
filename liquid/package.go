// Package liquid loads programs from .lq files and runs every phase on them:
// parsing, lowering to mir, refinement checking and evaluation.
package liquid

import (
	"context"
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"testing/fstest"

	"github.com/cottand/liquid/eval"
	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lower"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/parser"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/tycheck"
)

// FileExt is the extension of the source files LoadPackage reads
const FileExt = ".lq"

var packageLogger = log.Section("package")

// Package is the set of .lq files of a directory, checked as one program.
// Functions in one file may call functions declared in any other.
type Package struct {
	name   string
	fSet   *token.FileSet
	syntax []*syntax.File
	// Program is nil if the package has parse or lowering errors
	Program *mir.Program
	errors  *lqerr.Errors
}

// SourceFS is where packages are loaded from, like os.DirFS or an embed.FS
type SourceFS interface {
	fs.ReadFileFS
	fs.ReadDirFS
}

type LoadSettings struct {
	// Dir is the path of the folder in the filesystem where the package is located
	// the default is `.`
	Dir string
	// Files restricts loading to these file names inside Dir, all .lq files if empty
	Files []string
}

// LoadPackage parses and lowers the .lq files in dir. Problems in the
// source are returned by Errors, the error is only for failing to read dir.
func LoadPackage(dir SourceFS, config LoadSettings) (*Package, error) {
	dirPath := config.Dir
	if dirPath == "" {
		dirPath = "."
	}
	names := config.Files
	if len(names) == 0 {
		entries, err := dir.ReadDir(dirPath)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExt) {
				names = append(names, entry.Name())
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s files in %s", FileExt, dirPath)
	}

	pkg := &Package{
		name: path.Base(dirPath),
		fSet: token.NewFileSet(),
	}
	if pkg.name == "." || pkg.name == "/" {
		pkg.name = "main"
	}
	for _, name := range names {
		content, err := dir.ReadFile(path.Join(dirPath, name))
		if err != nil {
			return nil, err
		}
		file, errs := parser.Parse(pkg.fSet, name, string(content))
		pkg.errors = pkg.errors.Merge(errs)
		if file != nil {
			pkg.syntax = append(pkg.syntax, file)
		}
	}
	if pkg.errors.HasError() {
		packageLogger.Debug("not lowering package with syntax errors", "package", pkg.name, "errors", pkg.errors)
		return pkg, nil
	}

	merged := &syntax.File{Name: pkg.name}
	for _, file := range pkg.syntax {
		merged.Funcs = append(merged.Funcs, file.Funcs...)
	}
	prog, errs := lower.Lower(merged)
	pkg.errors = pkg.errors.Merge(errs)
	pkg.Program = prog
	packageLogger.Debug("loaded package", "package", pkg.name, "files", len(names), "ok", !pkg.errors.HasError())
	return pkg, nil
}

// NewPackageFromBytes loads a package made of a single file, meant for testing
func NewPackageFromBytes(data []byte, fileName string) (*Package, *lqerr.Errors, error) {
	filesystem := fstest.MapFS{
		fileName: &fstest.MapFile{
			Data: data,
		},
	}
	pkg, err := LoadPackage(filesystem, LoadSettings{})
	if err != nil {
		return nil, nil, err
	}
	pkg.name = strings.TrimSuffix(fileName, FileExt)
	return pkg, pkg.errors, nil
}

func (p *Package) Name() string {
	return p.name
}

func (p *Package) FileSet() *token.FileSet {
	return p.fSet
}

func (p *Package) Syntax() []*syntax.File {
	return p.syntax
}

// Errors are the problems found while parsing and lowering
func (p *Package) Errors() *lqerr.Errors {
	return p.errors
}

// Check checks every function of the package. Packages with errors
// cannot be checked.
func (p *Package) Check(ctx context.Context, opts tycheck.Options) (*tycheck.Report, error) {
	if p.Program == nil {
		return nil, fmt.Errorf("package %s has errors and cannot be checked", p.name)
	}
	return tycheck.CheckProgram(ctx, p.Program, opts)
}

// ParseValue reads an argument for Run written as on the command line: an
// integer, or one of the words true and false
func ParseValue(s string) (any, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("'%s' is neither an integer nor a boolean", s)
	}
	return i, nil
}

// Run evaluates the function name with args, see eval.Run
func (p *Package) Run(name string, args ...any) (any, error) {
	if p.Program == nil {
		return nil, fmt.Errorf("package %s has errors and cannot be run", p.name)
	}
	return eval.Run(p.Program, name, args...)
}

// FormatError renders err with the file, line and column it refers to
func (p *Package) FormatError(err lqerr.LqError) string {
	return lqerr.FormatWithPosition(err, p.fSet)
}

// FormatReport renders one line per failed function and, if withConstraints
// is set, one line per deferred constraint
func (p *Package) FormatReport(report *tycheck.Report, withConstraints bool) string {
	sb := strings.Builder{}
	for _, res := range report.Funcs {
		if res.Err != nil {
			sb.WriteString(p.FormatError(res.Err) + "\n")
		}
		if !withConstraints {
			continue
		}
		fn, _ := p.Program.Func(res.Func)
		for _, constraint := range res.Constraints {
			sb.WriteString(fmt.Sprintf("%v: constraint in '%s' (%s): %s\n",
				p.fSet.Position(constraint.Pos()), res.Name, constraint.Origin, constraint.Format(fn)))
		}
	}
	return sb.String()
}

// WriteTranspiled writes the package as the Go source of a main package to dir
func (p *Package) WriteTranspiled(dir string) error {
	if p.Program == nil {
		return fmt.Errorf("package %s has errors and cannot be transpiled", p.name)
	}
	source, err := eval.Transpile(p.Program)
	if err != nil {
		return fmt.Errorf("transpile %s: %w", p.name, err)
	}
	filePath := path.Join(dir, p.name+".go")
	if err := os.WriteFile(filePath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	return nil
}

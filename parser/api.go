package parser

import (
	"go/token"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/syntax"
)

// Parse parses the source code of a whole file. The file is added to fSet,
// which all positions in the returned syntax tree refer to.
//
// Parsing stops at the first syntax error.
func Parse(fSet *token.FileSet, name, src string) (*syntax.File, *lqerr.Errors) {
	if fSet == nil {
		fSet = token.NewFileSet()
	}
	file := fSet.AddFile(name, -1, len(src))
	file.SetLinesForContent([]byte(src))
	logger := log.Section("parser")

	tokens, lexErr := tokenize(src, file)
	if lexErr != nil {
		logger.Debug("lexing failed", "file", name, "error", lexErr.msg)
		return nil, (&lqerr.Errors{}).With(lexErr.lqError())
	}

	p := &parser{file: file, tokens: tokens}
	f, err := p.parseFileRecovering(name)
	if err != nil {
		logger.Debug("parsing failed", "file", name, "error", err.msg)
		return nil, (&lqerr.Errors{}).With(err.lqError())
	}
	logger.Debug("parsed file", "file", name, "funcs", len(f.Funcs))
	return f, nil
}

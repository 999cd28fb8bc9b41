package eval

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/ty"
	"github.com/traefik/yaegi/interp"
)

// Run calls the function name of prog with args, which must be ints or
// bools matching its parameters, and returns an int64, a bool or struct{}.
// Functions taking functions cannot be run directly. A failed assertion or
// an abort is returned as an error.
func Run(prog *mir.Program, name string, args ...any) (ret any, err error) {
	fn, ok := prog.FuncByName(name)
	if !ok {
		return nil, fmt.Errorf("no function named '%s'", name)
	}
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("function '%s' takes %d arguments, got %d", name, len(fn.Params), len(args))
	}
	goArgs := make([]string, len(args))
	for pos, arg := range args {
		goArg, err := argToGo(fn.Ty.Arguments()[pos], arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d of '%s': %w", pos, name, err)
		}
		goArgs[pos] = goArg
	}

	source, err := Transpile(prog)
	if err != nil {
		return nil, err
	}
	log.Section("eval").Debug("running transpiled program", "func", name, "source", source)

	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, fmt.Errorf("function '%s' panicked: %v", name, r)
		}
	}()
	i := interp.New(interp.Options{})
	if _, err := i.Eval(source); err != nil {
		return nil, fmt.Errorf("could not load transpiled program: %w", err)
	}
	res, err := i.Eval(GoFuncName(fn) + "(" + strings.Join(goArgs, ", ") + ")")
	if err != nil {
		return nil, fmt.Errorf("running '%s': %w", name, err)
	}
	return valueFromGo(res), nil
}

func argToGo(t ty.Ty, arg any) (string, error) {
	base, ok := ty.GetBase(t)
	if !ok {
		return "", fmt.Errorf("cannot pass a function")
	}
	switch arg := arg.(type) {
	case int:
		if base == ty.Int {
			return "int64(" + strconv.Itoa(arg) + ")", nil
		}
	case int64:
		if base == ty.Int {
			return "int64(" + strconv.FormatInt(arg, 10) + ")", nil
		}
	case bool:
		if base == ty.Bool {
			return strconv.FormatBool(arg), nil
		}
	case struct{}:
		if base == ty.Unit {
			return "struct{}{}", nil
		}
	}
	return "", fmt.Errorf("expected a value of type %v, got %v (%T)", base, arg, arg)
}

func valueFromGo(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int64, reflect.Int:
		return v.Int()
	case reflect.Bool:
		return v.Bool()
	case reflect.Struct:
		return struct{}{}
	}
	if v.IsValid() && v.CanInterface() {
		return v.Interface()
	}
	return nil
}

package ty

import "fmt"

// BaseTy is a primitive type that can be refined by a Predicate
type BaseTy uint8

const (
	_ BaseTy = iota
	Int
	Bool
	Unit
)

func (b BaseTy) String() string {
	switch b {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Unit:
		return "()"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(b))
	}
}

// BaseTyFromName returns the BaseTy with the given surface name, if any
func BaseTyFromName(name string) (BaseTy, bool) {
	switch name {
	case "int":
		return Int, true
	case "bool":
		return Bool, true
	case "unit", "()":
		return Unit, true
	}
	return 0, false
}

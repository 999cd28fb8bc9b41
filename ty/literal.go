package ty

import "strconv"

// Literal is a constant value of some BaseTy.
// Booleans are stored as 0 and 1, unit as 0.
type Literal struct {
	base  BaseTy
	value int64
}

func IntLit(v int64) Literal { return Literal{base: Int, value: v} }

func BoolLit(v bool) Literal {
	if v {
		return Literal{base: Bool, value: 1}
	}
	return Literal{base: Bool, value: 0}
}

func UnitLit() Literal { return Literal{base: Unit} }

func (l Literal) BaseTy() BaseTy { return l.base }

// Int returns the integer value of the literal. For booleans, true is 1.
func (l Literal) Int() int64 { return l.value }

func (l Literal) Bool() bool { return l.value != 0 }

func (l Literal) String() string {
	switch l.base {
	case Bool:
		return strconv.FormatBool(l.Bool())
	case Unit:
		return "()"
	default:
		return strconv.FormatInt(l.value, 10)
	}
}

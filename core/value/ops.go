package value

import "fmt"

// ToUnsigned converts a literal to an unsigned integer. Strings and
// pattern references do not convert.
func ToUnsigned(l Literal) (uint64, error) {
	switch v := l.(type) {
	case Unsigned:
		return uint64(v), nil
	case Signed:
		return uint64(v), nil
	case Float:
		return uint64(v), nil
	case Bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case Char:
		return uint64(v), nil
	case Char16:
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert value of type '%s' to integer", l.Kind())
	}
}

// ToSigned converts a literal to a signed integer.
func ToSigned(l Literal) (int64, error) {
	switch v := l.(type) {
	case Unsigned:
		return int64(v), nil
	case Signed:
		return int64(v), nil
	case Float:
		return int64(v), nil
	case Bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case Char:
		return int64(int8(v)), nil
	case Char16:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert value of type '%s' to integer", l.Kind())
	}
}

// ToFloat converts a literal to a float.
func ToFloat(l Literal) (float64, error) {
	switch v := l.(type) {
	case Unsigned:
		return float64(v), nil
	case Signed:
		return float64(v), nil
	case Float:
		return float64(v), nil
	case Bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case Char:
		return float64(v), nil
	case Char16:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert value of type '%s' to floating point", l.Kind())
	}
}

// ToBool converts a literal to its truthiness. Every numeric literal is
// true when non-zero; strings are true when non-empty.
func ToBool(l Literal) (bool, error) {
	switch v := l.(type) {
	case Bool:
		return bool(v), nil
	case Float:
		return v != 0, nil
	case String:
		return len(v) > 0, nil
	case Ref:
		return v.P != nil, nil
	default:
		u, err := ToUnsigned(l)
		if err != nil {
			return false, err
		}
		return u != 0, nil
	}
}

// IsNumeric reports whether l participates in arithmetic promotion.
func IsNumeric(l Literal) bool {
	switch l.Kind() {
	case KindUnsigned, KindSigned, KindFloat, KindBool, KindChar, KindChar16:
		return true
	default:
		return false
	}
}

// widen maps the small integer-like variants onto the three arithmetic
// carriers before promotion.
func widen(l Literal) Literal {
	switch v := l.(type) {
	case Bool:
		if v {
			return Unsigned(1)
		}
		return Unsigned(0)
	case Char:
		return Signed(int64(int8(v)))
	case Char16:
		return Unsigned(uint64(v))
	default:
		return l
	}
}

// Promote applies the numeric promotion rule to an operand pair:
// widest wins, integers widen to float on mixed operations, and
// signed + unsigned promotes to signed when the unsigned operand fits,
// otherwise to unsigned.
func Promote(a, b Literal) (Literal, Literal, error) {
	if !IsNumeric(a) || !IsNumeric(b) {
		return nil, nil, fmt.Errorf("cannot use values of type '%s' and '%s' in a numeric operation", a.Kind(), b.Kind())
	}

	a, b = widen(a), widen(b)

	if a.Kind() == KindFloat || b.Kind() == KindFloat {
		af, _ := ToFloat(a)
		bf, _ := ToFloat(b)
		return Float(af), Float(bf), nil
	}

	if a.Kind() == b.Kind() {
		return a, b, nil
	}

	// One signed, one unsigned.
	aSigned := a.Kind() == KindSigned
	u, s := a, b
	if aSigned {
		u, s = b, a
	}
	var pu, ps Literal
	if uint64(u.(Unsigned)) <= uint64(1)<<63-1 {
		pu, ps = Signed(int64(u.(Unsigned))), s
	} else {
		uv, _ := ToUnsigned(s)
		pu, ps = u, Unsigned(uv)
	}
	if aSigned {
		return ps, pu, nil
	}
	return pu, ps, nil
}

// Equal compares two literals after promotion. Strings compare to
// strings only; pattern references compare by identity.
func Equal(a, b Literal) (bool, error) {
	if a.Kind() == KindString || b.Kind() == KindString {
		as, aok := a.(String)
		bs, bok := b.(String)
		if !aok || !bok {
			return false, fmt.Errorf("cannot compare value of type '%s' with string", pickNonString(a, b).Kind())
		}
		return as == bs, nil
	}
	if a.Kind() == KindPattern || b.Kind() == KindPattern {
		ar, aok := a.(Ref)
		br, bok := b.(Ref)
		if !aok || !bok {
			return false, fmt.Errorf("cannot compare value of type '%s' with pattern", pickNonString(a, b).Kind())
		}
		return ar.P == br.P, nil
	}
	pa, pb, err := Promote(a, b)
	if err != nil {
		return false, err
	}
	switch va := pa.(type) {
	case Unsigned:
		return va == pb.(Unsigned), nil
	case Signed:
		return va == pb.(Signed), nil
	case Float:
		return va == pb.(Float), nil
	}
	return false, fmt.Errorf("cannot compare values of type '%s' and '%s'", a.Kind(), b.Kind())
}

func pickNonString(a, b Literal) Literal {
	if a.Kind() != KindString && a.Kind() != KindPattern {
		return a
	}
	return b
}

// Less reports a < b after promotion; for strings it is lexicographic.
func Less(a, b Literal) (bool, error) {
	if a.Kind() == KindString && b.Kind() == KindString {
		return a.(String) < b.(String), nil
	}
	pa, pb, err := Promote(a, b)
	if err != nil {
		return false, err
	}
	switch va := pa.(type) {
	case Unsigned:
		return va < pb.(Unsigned), nil
	case Signed:
		return va < pb.(Signed), nil
	case Float:
		return va < pb.(Float), nil
	}
	return false, fmt.Errorf("cannot compare values of type '%s' and '%s'", a.Kind(), b.Kind())
}

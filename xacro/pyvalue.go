package xacro

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// pyNumber unpacks a numeric value. bool counts as int, as in Python.
func pyNumber(v ref.Val) (i int64, f float64, isInt, ok bool) {
	switch n := v.(type) {
	case types.Int:
		return int64(n), float64(n), true, true
	case types.Uint:
		return int64(n), float64(n), true, true
	case types.Double:
		return 0, float64(n), false, true
	case types.Bool:
		if n {
			return 1, 1, true, true
		}
		return 0, 0, true, true
	}
	return 0, 0, false, false
}

func pyTypeName(v ref.Val) string {
	switch v.(type) {
	case types.Int, types.Uint:
		return "int"
	case types.Double:
		return "float"
	case types.String:
		return "str"
	case types.Bool:
		return "bool"
	case types.Null:
		return "NoneType"
	case traits.Mapper:
		return "dict"
	case traits.Lister:
		return "list"
	}
	return v.Type().TypeName()
}

func unsupportedOperands(op string, lhs, rhs ref.Val) ref.Val {
	return types.NewErr("unsupported operand type(s) for %s: '%s' and '%s'", op, pyTypeName(lhs), pyTypeName(rhs))
}

// numeric builds a binary operator that stays integral for two ints and otherwise works on
// floats. A nil ints always promotes.
func numeric(op string, ints func(a, b int64) ref.Val, floats func(a, b float64) ref.Val) func(lhs, rhs ref.Val) ref.Val {
	return func(lhs, rhs ref.Val) ref.Val {
		ai, af, aInt, aOK := pyNumber(lhs)
		bi, bf, bInt, bOK := pyNumber(rhs)
		if !aOK || !bOK {
			return unsupportedOperands(op, lhs, rhs)
		}
		if aInt && bInt && ints != nil {
			return ints(ai, bi)
		}
		return floats(af, bf)
	}
}

var (
	addNumbers = numeric("+",
		func(a, b int64) ref.Val { return types.Int(a + b) },
		func(a, b float64) ref.Val { return types.Double(a + b) })
	pySub = numeric("-",
		func(a, b int64) ref.Val { return types.Int(a - b) },
		func(a, b float64) ref.Val { return types.Double(a - b) })
	mulNumbers = numeric("*",
		func(a, b int64) ref.Val { return types.Int(a * b) },
		func(a, b float64) ref.Val { return types.Double(a * b) })
	pyTrueDiv = numeric("/", nil, func(a, b float64) ref.Val {
		if b == 0 {
			return types.NewErr("division by zero")
		}
		return types.Double(a / b)
	})
	pyFloorDiv = numeric("//",
		func(a, b int64) ref.Val {
			if b == 0 {
				return types.NewErr("integer division or modulo by zero")
			}
			q := a / b
			if a%b != 0 && (a < 0) != (b < 0) {
				q--
			}
			return types.Int(q)
		},
		func(a, b float64) ref.Val {
			if b == 0 {
				return types.NewErr("float floor division by zero")
			}
			return types.Double(math.Floor(a / b))
		})
	pyMod = numeric("%",
		func(a, b int64) ref.Val {
			if b == 0 {
				return types.NewErr("integer division or modulo by zero")
			}
			r := a % b
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return types.Int(r)
		},
		func(a, b float64) ref.Val {
			if b == 0 {
				return types.NewErr("float modulo")
			}
			r := math.Mod(a, b)
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return types.Double(r)
		})
	pyPow = numeric("**",
		func(a, b int64) ref.Val {
			if b < 0 {
				return types.Double(math.Pow(float64(a), float64(b)))
			}
			result := int64(1)
			for ; b > 0; b >>= 1 {
				if b&1 == 1 {
					result *= a
				}
				a *= a
			}
			return types.Int(result)
		},
		func(a, b float64) ref.Val { return types.Double(math.Pow(a, b)) })
)

func pyAdd(lhs, rhs ref.Val) ref.Val {
	if l, ok := lhs.(types.String); ok {
		if r, ok := rhs.(types.String); ok {
			return l + r
		}
	}
	if l, ok := lhs.(traits.Lister); ok {
		if _, ok := rhs.(traits.Lister); ok {
			return l.Add(rhs)
		}
	}
	return addNumbers(lhs, rhs)
}

func pyMul(lhs, rhs ref.Val) ref.Val {
	if s, ok := lhs.(types.String); ok {
		if n, ok := rhs.(types.Int); ok {
			return types.String(strings.Repeat(string(s), int(max(n, 0))))
		}
	}
	if n, ok := lhs.(types.Int); ok {
		if s, ok := rhs.(types.String); ok {
			return types.String(strings.Repeat(string(s), int(max(n, 0))))
		}
	}
	return mulNumbers(lhs, rhs)
}

func pyNeg(v ref.Val) ref.Val {
	i, f, isInt, ok := pyNumber(v)
	switch {
	case !ok:
		return types.NewErr("bad operand type for unary -: '%s'", pyTypeName(v))
	case isInt:
		return types.Int(-i)
	default:
		return types.Double(-f)
	}
}

// pyCompare orders numbers across int and float, and strings lexically.
func pyCompare(lhs, rhs ref.Val) (int, bool) {
	ai, af, aInt, aOK := pyNumber(lhs)
	bi, bf, bInt, bOK := pyNumber(rhs)
	if aOK && bOK {
		switch {
		case aInt && bInt && ai < bi, !(aInt && bInt) && af < bf:
			return -1, true
		case aInt && bInt && ai > bi, !(aInt && bInt) && af > bf:
			return 1, true
		}
		return 0, true
	}
	l, lok := lhs.(types.String)
	r, rok := rhs.(types.String)
	if lok && rok {
		return strings.Compare(string(l), string(r)), true
	}
	return 0, false
}

func pyEquals(lhs, rhs ref.Val) bool {
	if c, ok := pyCompare(lhs, rhs); ok {
		return c == 0
	}
	_, lnull := lhs.(types.Null)
	_, rnull := rhs.(types.Null)
	if lnull || rnull {
		return lnull && rnull
	}
	if pyTypeName(lhs) != pyTypeName(rhs) {
		return false
	}
	return lhs.Equal(rhs) == types.True
}

func pyEq(lhs, rhs ref.Val) ref.Val { return types.Bool(pyEquals(lhs, rhs)) }
func pyNe(lhs, rhs ref.Val) ref.Val { return types.Bool(!pyEquals(lhs, rhs)) }

func ordering(op string, holds func(int) bool) func(lhs, rhs ref.Val) ref.Val {
	return func(lhs, rhs ref.Val) ref.Val {
		c, ok := pyCompare(lhs, rhs)
		if !ok {
			return types.NewErr("'%s' not supported between instances of '%s' and '%s'", op, pyTypeName(lhs), pyTypeName(rhs))
		}
		return types.Bool(holds(c))
	}
}

var (
	pyLt = ordering("<", func(c int) bool { return c < 0 })
	pyLe = ordering("<=", func(c int) bool { return c <= 0 })
	pyGt = ordering(">", func(c int) bool { return c > 0 })
	pyGe = ordering(">=", func(c int) bool { return c >= 0 })
)

func pyIn(item, container ref.Val) ref.Val {
	switch c := container.(type) {
	case types.String:
		s, ok := item.(types.String)
		if !ok {
			return types.NewErr("'in <string>' requires string as left operand, not %s", pyTypeName(item))
		}
		return types.Bool(strings.Contains(string(c), string(s)))
	case traits.Mapper:
		_, found := c.Find(item)
		return types.Bool(found)
	case traits.Lister:
		for it := c.Iterator(); it.HasNext() == types.True; {
			if pyEquals(item, it.Next()) {
				return types.True
			}
		}
		return types.False
	}
	return types.NewErr("argument of type '%s' is not iterable", pyTypeName(container))
}

func pyTruth(v ref.Val) bool {
	switch val := v.(type) {
	case types.Bool:
		return bool(val)
	case types.Null:
		return false
	case types.String:
		return val != ""
	case traits.Sizer:
		return val.Size() != types.Int(0)
	}
	_, f, _, ok := pyNumber(v)
	return !ok || f != 0
}

// normalizeIndex applies Python's negative indexing.
func normalizeIndex(index ref.Val, size int64) (int64, ref.Val) {
	i, _, isInt, ok := pyNumber(index)
	if !ok || !isInt {
		return 0, types.NewErr("indices must be integers, not %s", pyTypeName(index))
	}
	if i < 0 {
		i += size
	}
	if i < 0 || i >= size {
		return 0, types.NewErr("index out of range")
	}
	return i, nil
}

func pyIndex(x, index ref.Val) ref.Val {
	switch c := x.(type) {
	case types.String:
		runes := []rune(string(c))
		i, err := normalizeIndex(index, int64(len(runes)))
		if err != nil {
			return err
		}
		return types.String(runes[i])
	case traits.Mapper:
		value, found := c.Find(index)
		if !found {
			return types.NewErr("KeyError: %s", pyRepr(index))
		}
		return value
	case traits.Lister:
		i, err := normalizeIndex(index, int64(c.Size().(types.Int)))
		if err != nil {
			return err
		}
		return c.Get(types.Int(i))
	}
	return types.NewErr("'%s' object is not subscriptable", pyTypeName(x))
}

// pyAttr reads dictionary keys as attributes, the way xacro exposes loaded YAML.
func pyAttr(x, name ref.Val) ref.Val {
	if m, ok := x.(traits.Mapper); ok {
		if value, found := m.Find(name); found {
			return value
		}
	}
	return types.NewErr("'%s' object has no attribute '%s'", pyTypeName(x), name)
}

func pyRepr(v ref.Val) string {
	value, err := fromCEL(v)
	if err != nil {
		return pyTypeName(v)
	}
	return reprValue(value)
}

func pyLen(v ref.Val) ref.Val {
	switch val := v.(type) {
	case types.String:
		return types.Int(utf8.RuneCountInString(string(val)))
	case traits.Sizer:
		return val.Size()
	}
	return types.NewErr("object of type '%s' has no len()", pyTypeName(v))
}

func pyInt(v ref.Val) ref.Val {
	if s, ok := v.(types.String); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
		if err != nil {
			return types.NewErr("invalid literal for int() with base 10: %s", pyRepr(v))
		}
		return types.Int(i)
	}
	i, f, isInt, ok := pyNumber(v)
	switch {
	case !ok:
		return types.NewErr("int() argument must be a string or a number, not '%s'", pyTypeName(v))
	case isInt:
		return types.Int(i)
	case math.IsNaN(f) || math.IsInf(f, 0):
		return types.NewErr("cannot convert float %s to integer", formatFloat(f))
	}
	return types.Int(int64(math.Trunc(f)))
}

func pyFloat(v ref.Val) ref.Val {
	if s, ok := v.(types.String); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
		if err != nil {
			return types.NewErr("could not convert string to float: %s", pyRepr(v))
		}
		return types.Double(f)
	}
	_, f, _, ok := pyNumber(v)
	if !ok {
		return types.NewErr("float() argument must be a string or a number, not '%s'", pyTypeName(v))
	}
	return types.Double(f)
}

func pyStr(v ref.Val) ref.Val {
	if s, ok := v.(types.String); ok {
		return s
	}
	if _, ok := v.(types.Null); ok {
		return types.String("None")
	}
	return types.String(pyRepr(v))
}

func pyAbs(v ref.Val) ref.Val {
	i, f, isInt, ok := pyNumber(v)
	switch {
	case !ok:
		return types.NewErr("bad operand type for abs(): '%s'", pyTypeName(v))
	case isInt && i < 0:
		return types.Int(-i)
	case isInt:
		return types.Int(i)
	}
	return types.Double(math.Abs(f))
}

// pyRound rounds half to even like Python 3. Without ndigits the result is an int.
func pyRound(args []ref.Val) ref.Val {
	i, f, isInt, ok := pyNumber(args[0])
	if !ok {
		return types.NewErr("type %s doesn't define __round__ method", pyTypeName(args[0]))
	}
	if len(args) == 1 {
		if isInt {
			return types.Int(i)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return types.NewErr("cannot convert float %s to integer", formatFloat(f))
		}
		return types.Int(int64(math.RoundToEven(f)))
	}
	digits, _, digitsInt, ok := pyNumber(args[1])
	if !ok || !digitsInt {
		return types.NewErr("'%s' object cannot be interpreted as an integer", pyTypeName(args[1]))
	}
	if isInt && digits >= 0 {
		return types.Int(i)
	}
	scale := math.Pow(10, float64(digits))
	return types.Double(math.RoundToEven(f*scale) / scale)
}

// pyExtreme implements min and max over either the arguments or a single list argument.
func pyExtreme(name string, want int) func(args []ref.Val) ref.Val {
	op := "<"
	if want > 0 {
		op = ">"
	}
	return func(args []ref.Val) ref.Val {
		items := args
		if len(args) == 1 {
			lister, ok := args[0].(traits.Lister)
			if !ok {
				return types.NewErr("'%s' object is not iterable", pyTypeName(args[0]))
			}
			items = nil
			for it := lister.Iterator(); it.HasNext() == types.True; {
				items = append(items, it.Next())
			}
		}
		if len(items) == 0 {
			return types.NewErr("%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, item := range items[1:] {
			c, ok := pyCompare(item, best)
			if !ok {
				return types.NewErr("'%s' not supported between instances of '%s' and '%s'",
					op, pyTypeName(item), pyTypeName(best))
			}
			if c == want {
				best = item
			}
		}
		return best
	}
}

// pyBuiltin is a Python function callable from expressions.
type pyBuiltin struct {
	minArgs, maxArgs int
	call             func(args []ref.Val) ref.Val
}

func unary(fn func(ref.Val) ref.Val) *pyBuiltin {
	return &pyBuiltin{minArgs: 1, maxArgs: 1, call: func(args []ref.Val) ref.Val { return fn(args[0]) }}
}

// mathFunc wraps a float function, rejecting results outside its domain like Python's math module.
func mathFunc(fn func(float64) float64) *pyBuiltin {
	return unary(func(v ref.Val) ref.Val {
		_, f, _, ok := pyNumber(v)
		if !ok {
			return types.NewErr("must be real number, not %s", pyTypeName(v))
		}
		result := fn(f)
		if math.IsNaN(result) && !math.IsNaN(f) {
			return types.NewErr("math domain error")
		}
		return types.Double(result)
	})
}

func mathFunc2(fn func(a, b float64) float64) *pyBuiltin {
	return &pyBuiltin{minArgs: 2, maxArgs: 2, call: func(args []ref.Val) ref.Val {
		_, a, _, aOK := pyNumber(args[0])
		_, b, _, bOK := pyNumber(args[1])
		switch {
		case !aOK:
			return types.NewErr("must be real number, not %s", pyTypeName(args[0]))
		case !bOK:
			return types.NewErr("must be real number, not %s", pyTypeName(args[1]))
		}
		return types.Double(fn(a, b))
	}}
}

// roundingFunc is math.floor or math.ceil, which return int in Python 3.
func roundingFunc(fn func(float64) float64) *pyBuiltin {
	return unary(func(v ref.Val) ref.Val {
		i, f, isInt, ok := pyNumber(v)
		switch {
		case !ok:
			return types.NewErr("must be real number, not %s", pyTypeName(v))
		case isInt:
			return types.Int(i)
		case math.IsNaN(f) || math.IsInf(f, 0):
			return types.NewErr("cannot convert float %s to integer", formatFloat(f))
		}
		return types.Int(int64(fn(f)))
	})
}

func pyLog(args []ref.Val) ref.Val {
	_, x, _, ok := pyNumber(args[0])
	if !ok {
		return types.NewErr("must be real number, not %s", pyTypeName(args[0]))
	}
	if x <= 0 {
		return types.NewErr("math domain error")
	}
	if len(args) == 1 {
		return types.Double(math.Log(x))
	}
	_, base, _, ok := pyNumber(args[1])
	if !ok || base <= 0 || base == 1 {
		return types.NewErr("math domain error")
	}
	return types.Double(math.Log(x) / math.Log(base))
}

// pyBuiltins holds the callable names. The math functions are reachable both bare and under
// "math.", matching the names xacro puts in scope.
var pyBuiltins = func() map[string]*pyBuiltin {
	builtins := map[string]*pyBuiltin{
		"abs":   unary(pyAbs),
		"int":   unary(pyInt),
		"float": unary(pyFloat),
		"str":   unary(pyStr),
		"bool":  unary(func(v ref.Val) ref.Val { return types.Bool(pyTruth(v)) }),
		"len":   unary(pyLen),
		"round": {minArgs: 1, maxArgs: 2, call: pyRound},
		"min":   {minArgs: 1, maxArgs: -1, call: pyExtreme("min", -1)},
		"max":   {minArgs: 1, maxArgs: -1, call: pyExtreme("max", 1)},
		"pow":   {minArgs: 2, maxArgs: 2, call: func(args []ref.Val) ref.Val { return pyPow(args[0], args[1]) }},
	}
	mathModule := map[string]*pyBuiltin{
		"radians": mathFunc(func(x float64) float64 { return x * math.Pi / 180 }),
		"degrees": mathFunc(func(x float64) float64 { return x * 180 / math.Pi }),
		"sin":     mathFunc(math.Sin),
		"cos":     mathFunc(math.Cos),
		"tan":     mathFunc(math.Tan),
		"asin":    mathFunc(math.Asin),
		"acos":    mathFunc(math.Acos),
		"atan":    mathFunc(math.Atan),
		"sqrt":    mathFunc(math.Sqrt),
		"exp":     mathFunc(math.Exp),
		"fabs":    mathFunc(math.Abs),
		"log10":   mathFunc(math.Log10),
		"atan2":   mathFunc2(math.Atan2),
		"hypot":   mathFunc2(math.Hypot),
		"pow":     mathFunc2(math.Pow),
		"floor":   roundingFunc(math.Floor),
		"ceil":    roundingFunc(math.Ceil),
		"log":     {minArgs: 1, maxArgs: 2, call: pyLog},
	}
	for name, fn := range mathModule {
		builtins["math."+name] = fn
		if _, taken := builtins[name]; !taken {
			builtins[name] = fn
		}
	}
	return builtins
}()

// mathConstants are readable bare and under "math.". A property of the same bare name wins.
var mathConstants = map[string]float64{
	"pi": math.Pi, "e": math.E, "tau": 2 * math.Pi, "inf": math.Inf(1), "nan": math.NaN(),
	"math.pi": math.Pi, "math.e": math.E, "math.tau": 2 * math.Pi, "math.inf": math.Inf(1), "math.nan": math.NaN(),
}

func pyCall(name, argList ref.Val) ref.Val {
	fn := pyBuiltins[string(name.(types.String))]
	if fn == nil {
		return types.NewErr("unknown function %s()", name)
	}
	lister := argList.(traits.Lister)
	var args []ref.Val
	for it := lister.Iterator(); it.HasNext() == types.True; {
		args = append(args, it.Next())
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return types.NewErr("%s() got %d arguments", name, len(args))
	}
	return fn.call(args)
}

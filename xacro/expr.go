package xacro

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Expressions inside ${...} are evaluated in CEL after translation from Python. Integers stay
// integers and floats stay floats, so 7/2 is 3.5, 7//2 is 3 and int(3.7) is 3.

// intValue is an integral number, rendered without a fraction.
type intValue int64

var (
	baseEnvOnce sync.Once
	baseEnv     *cel.Env
	baseEnvErr  error
)

func dynFunction(name string, args int, fn interface{}) cel.EnvOption {
	argTypes := make([]*cel.Type, args)
	for i := range argTypes {
		argTypes[i] = cel.DynType
	}
	var binding cel.OverloadOpt
	switch f := fn.(type) {
	case func(ref.Val) ref.Val:
		binding = cel.UnaryBinding(f)
	case func(ref.Val, ref.Val) ref.Val:
		binding = cel.BinaryBinding(f)
	}
	return cel.Function(name, cel.Overload(name+"_dyn", argTypes, cel.DynType, binding))
}

func predicate(name string, args int, fn interface{}) cel.EnvOption {
	argTypes := make([]*cel.Type, args)
	for i := range argTypes {
		argTypes[i] = cel.DynType
	}
	var binding cel.OverloadOpt
	switch f := fn.(type) {
	case func(ref.Val) bool:
		binding = cel.UnaryBinding(func(v ref.Val) ref.Val { return types.Bool(f(v)) })
	case func(ref.Val, ref.Val) ref.Val:
		binding = cel.BinaryBinding(f)
	}
	return cel.Function(name, cel.Overload(name+"_dyn", argTypes, cel.BoolType, binding))
}

func expressionEnv() (*cel.Env, error) {
	baseEnvOnce.Do(func() {
		baseEnv, baseEnvErr = cel.NewEnv(
			ext.Bindings(),
			dynFunction("py_add", 2, pyAdd),
			dynFunction("py_sub", 2, pySub),
			dynFunction("py_mul", 2, pyMul),
			dynFunction("py_truediv", 2, pyTrueDiv),
			dynFunction("py_floordiv", 2, pyFloorDiv),
			dynFunction("py_mod", 2, pyMod),
			dynFunction("py_pow", 2, pyPow),
			dynFunction("py_neg", 1, pyNeg),
			dynFunction("py_index", 2, pyIndex),
			dynFunction("py_attr", 2, pyAttr),
			dynFunction("py_call", 2, pyCall),
			predicate("py_truth", 1, pyTruth),
			predicate("py_eq", 2, pyEq),
			predicate("py_ne", 2, pyNe),
			predicate("py_lt", 2, pyLt),
			predicate("py_le", 2, pyLe),
			predicate("py_gt", 2, pyGt),
			predicate("py_ge", 2, pyGe),
			predicate("py_in", 2, pyIn),
		)
	})
	return baseEnv, baseEnvErr
}

// loadYAML is xacro.load_yaml. Relative names resolve against dir, the directory of the file
// being processed.
func loadYAML(dir string) func(ref.Val) ref.Val {
	return func(v ref.Val) ref.Val {
		name, ok := v.(types.String)
		if !ok {
			return types.NewErr("load_yaml() expects a file name, not %s", pyTypeName(v))
		}
		path := string(name)
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return types.NewErr("load_yaml(): %v", err)
		}
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return types.NewErr("load_yaml(): parsing %s: %v", path, err)
		}
		return types.DefaultTypeAdapter.NativeToValue(toNative(doc))
	}
}

// binder hands out a CEL variable per property or constant an expression reads.
type binder struct {
	sc           *scope
	names        map[string]string
	activation   map[string]interface{}
	declarations []cel.EnvOption
}

func (b *binder) bind(name string) (string, error) {
	if v, ok := b.names[name]; ok {
		return v, nil
	}
	value, found := b.sc.lookupProperty(name)
	if !found {
		constant, isConstant := mathConstants[name]
		if !isConstant {
			return "", NewUndefinedPropertyError(name)
		}
		value = constant
	}
	if _, isBlock := value.(block); isBlock {
		return "", errors.Errorf("block property %q cannot be used in an expression", name)
	}
	v := fmt.Sprintf("v%d", len(b.names))
	b.names[name] = v
	b.activation[v] = toNative(literalValue(value))
	b.declarations = append(b.declarations, cel.Variable(v, cel.DynType))
	return v, nil
}

// evaluateExpression evaluates a ${...} body against the scope. dir is the directory of the file
// being processed.
func evaluateExpression(expr string, sc *scope, dir string) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty expression")
	}
	b := &binder{sc: sc, names: map[string]string{}, activation: map[string]interface{}{}}
	source, err := translateExpression(expr, b.bind)
	if err != nil {
		return nil, err
	}

	env, err := expressionEnv()
	if err != nil {
		return nil, errors.Wrap(err, "building expression environment")
	}
	opts := append(b.declarations,
		dynFunction("py_load_yaml", 1, loadYAML(dir)))
	if env, err = env.Extend(opts...); err != nil {
		return nil, errors.Wrapf(err, "declaring variables for expression %q", expr)
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Errorf("invalid expression %q: %v", expr, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid expression %q", expr)
	}
	out, _, err := program.Eval(b.activation)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating expression %q", expr)
	}
	value, err := fromCEL(out)
	if err != nil {
		return nil, errors.Wrapf(err, "expression %q", expr)
	}
	return value, nil
}

// fromCEL converts an evaluation result into a property value.
func fromCEL(v ref.Val) (interface{}, error) {
	switch val := v.(type) {
	case types.Int:
		return intValue(val), nil
	case types.Uint:
		return intValue(val), nil
	case types.Double:
		return float64(val), nil
	case types.String:
		return string(val), nil
	case types.Bool:
		return bool(val), nil
	case types.Null:
		return nil, nil
	case traits.Mapper:
		out := map[string]interface{}{}
		for it := val.Iterator(); it.HasNext() == types.True; {
			key := it.Next()
			item, err := fromCEL(val.Get(key))
			if err != nil {
				return nil, err
			}
			if s, ok := key.(types.String); ok {
				out[string(s)] = item
				continue
			}
			k, err := fromCEL(key)
			if err != nil {
				return nil, err
			}
			out[formatValue(k)] = item
		}
		return out, nil
	case traits.Lister:
		size := int64(val.Size().(types.Int))
		out := make([]interface{}, 0, size)
		for i := int64(0); i < size; i++ {
			item, err := fromCEL(val.Get(types.Int(i)))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported value of type %s", v.Type().TypeName())
}

// toNative prepares a value for the CEL type adapter. YAML mappings with non-string keys are
// keyed by their rendered text.
func toNative(value interface{}) interface{} {
	switch v := value.(type) {
	case intValue:
		return int64(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = toNative(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = toNative(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = toNative(item)
		}
		return out
	default:
		return v
	}
}

// literalValue interprets text the way xacro interprets property literals: integers, then floats,
// then booleans, and otherwise the text itself with one level of single quotes removed.
func literalValue(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	if strings.Contains(s, "_") {
		return s
	}
	trimmed := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return intValue(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	switch trimmed {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	return s
}

// booleanValue interprets a conditional the way xacro:if and xacro:unless do.
func booleanValue(value interface{}, condition string) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case intValue:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch v {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		}
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i != 0, nil
		}
	}
	return false, NewNotBooleanError(condition, value)
}

// formatValue renders a value the way Python's str() would.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case intValue:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return formatFloat(v)
	case block:
		return "<block>"
	case []interface{}:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = reprValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]interface{}:
		keys := lo.Keys(v)
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = reprValue(k) + ": " + reprValue(v[k])
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

// reprValue renders a container element the way Python's repr() would.
func reprValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	}
	return formatValue(value)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

package xacro

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestTranslateExpression(t *testing.T) {
	bind := func(name string) (string, error) {
		if name == "missing" {
			return "", NewUndefinedPropertyError(name)
		}
		return "p_" + strings.ReplaceAll(name, ".", "_"), nil
	}
	for _, tc := range []struct {
		expr   string
		source string
	}{
		{"2*3", "py_mul(2, 3)"},
		{".5 + 1.", "py_add(0.5, 1.0)"},
		{"1e3", "1000.0"},
		{"a - b - c", "py_sub(py_sub(p_a, p_b), p_c)"},
		{"-2**2", "py_neg(py_pow(2, 2))"},
		{"2**3**2", "py_pow(2, py_pow(3, 2))"},
		{"7 // 2 % 3", "py_mod(py_floordiv(7, 2), 3)"},
		{"not flag", "!py_truth(p_flag)"},
		{"a and b", "cel.bind(t0, p_a, py_truth(t0) ? dyn(p_b) : dyn(t0))"},
		{"a or b", "cel.bind(t0, p_a, py_truth(t0) ? dyn(t0) : dyn(p_b))"},
		{"1 if c else 2", "(py_truth(p_c) ? dyn(1) : dyn(2))"},
		{"0 < x <= 1", "(py_lt(0, p_x) && py_le(p_x, 1))"},
		{"'a' not in names", `!py_in("a", p_names)`},
		{"x is None", "py_eq(p_x, null)"},
		{"'x or y' == name", `py_eq("x or y", p_name)`},
		{`'it''s'`, `"its"`},
		{"[1, 'two'][0]", `py_index([dyn(1), dyn("two")], 0)`},
		{"(1, 2)", "[dyn(1), dyn(2)]"},
		{"limits.joint1.velocity", `py_attr(py_attr(p_limits, "joint1"), "velocity")`},
		{"math.pi", "p_math_pi"},
		{"math.sin(x)", `py_call("math.sin", [dyn(p_x)])`},
		{"max(1, 2,)", `py_call("max", [dyn(1), dyn(2)])`},
		{"xacro.load_yaml('l.yaml')", `py_load_yaml("l.yaml")`},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			source, err := translateExpression(tc.expr, bind)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, source, test.ShouldEqual, tc.source)
		})
	}

	for expr, msg := range map[string]string{
		"'open":          "unterminated string literal",
		"1 +":            "unexpected end",
		"a = 1":          `unexpected "="`,
		"nope(1)":        "unknown function nope()",
		"[1, 2][0:1]":    "slices are not supported",
		"(a)(1)":         "only named functions can be called",
		"missing + 1":    `property "missing" is not defined`,
		"load_yaml(1,2)": "takes exactly one argument",
	} {
		_, err := translateExpression(expr, bind)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, msg)
	}
}

func TestEvaluateExpression(t *testing.T) {
	sc := newScope(nil)
	sc.properties["width"] = "0.2"
	sc.properties["count"] = "3"
	sc.properties["name"] = "openarm_hand"
	sc.properties["enabled"] = "true"
	sc.properties["quoted"] = "'v10'"
	sc.properties["empty"] = "''"
	sc.properties["sides"] = []interface{}{"left", "right"}
	sc.properties["limits"] = map[string]interface{}{"joint1": map[string]interface{}{"velocity": intValue(2)}}
	child := newScope(sc)
	child.properties["count"] = intValue(4)

	for _, tc := range []struct {
		expr     string
		scope    *scope
		expected interface{}
	}{
		{"2*3", sc, intValue(6)},
		{"0.5*2", sc, 1.0},
		{"7/2", sc, 3.5},
		{"6/2", sc, 3.0},
		{"7 // 2", sc, intValue(3)},
		{"-7 // 2", sc, intValue(-4)},
		{"7.5 // 2", sc, 3.0},
		{"7 % 3", sc, intValue(1)},
		{"-7 % 3", sc, intValue(2)},
		{"2**3", sc, intValue(8)},
		{"2**-1", sc, 0.5},
		{"-2**2", sc, intValue(-4)},
		{"1 + 0.5", sc, 1.5},
		{"count * 2", sc, intValue(6)},
		{"count * 2", child, intValue(8)},
		{"width * count", sc, 0.6000000000000001},
		{"name == 'openarm_hand'", sc, true},
		{"name != 'none' and not enabled", sc, false},
		{"empty or 'default'", sc, "default"},
		{"count and name", sc, "openarm_hand"},
		{"1 == 1.0", sc, true},
		{"1 == '1'", sc, false},
		{"0 < count <= 3", sc, true},
		{"'arm' in name", sc, true},
		{"'top' not in sides", sc, true},
		{"quoted", sc, "v10"},
		{"1 if enabled else 0", sc, intValue(1)},
		{"'a' if count > 5 else 'b'", sc, "b"},
		{"[1, 2][0]", sc, intValue(1)},
		{"sides[-1]", sc, "right"},
		{"name[0]", sc, "o"},
		{"limits['joint1']['velocity'] * 2", sc, intValue(4)},
		{"limits.joint1.velocity", sc, intValue(2)},
		{"max(1, 2)", sc, intValue(2)},
		{"min([3, 1.5, 2])", sc, 1.5},
		{"abs(-2)", sc, intValue(2)},
		{"abs(-2.5)", sc, 2.5},
		{"len('abc')", sc, intValue(3)},
		{"len(sides)", sc, intValue(2)},
		{"int(3.7)", sc, intValue(3)},
		{"int(-3.7)", sc, intValue(-3)},
		{"int('12')", sc, intValue(12)},
		{"float(count)", sc, 3.0},
		{"str(count) + 'x'", sc, "3x"},
		{"round(2.5)", sc, intValue(2)},
		{"round(0.125, 2)", sc, 0.12},
		{"math.floor(2.7)", sc, intValue(2)},
		{"ceil(2.1)", sc, intValue(3)},
		{"math.sqrt(16)", sc, 4.0},
		{"math.hypot(3, 4)", sc, 5.0},
		{"degrees(0)", sc, 0.0},
		{"math.pi / 2", sc, math.Pi / 2},
		{"'ab' * 2", sc, "abab"},
		{"[1] + [2]", sc, []interface{}{intValue(1), intValue(2)}},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			value, err := evaluateExpression(tc.expr, tc.scope, t.TempDir())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, value, test.ShouldResemble, tc.expected)
		})
	}

	for expr, msg := range map[string]string{
		"1 / 0":          "division by zero",
		"7 % 0":          "modulo by zero",
		"'a' + 1":        "unsupported operand type(s) for +: 'str' and 'int'",
		"'a' < 1":        "'<' not supported between instances of 'str' and 'int'",
		"sides[5]":       "index out of range",
		"limits['nope']": "KeyError: 'nope'",
		"sqrt(-1)":       "math domain error",
		"int('x')":       "invalid literal for int()",
		"max()":          "max() got 0 arguments",
	} {
		_, err := evaluateExpression(expr, sc, t.TempDir())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, msg)
	}

	value, err := evaluateExpression("pi", sc, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, math.Pi)

	sc.properties["pi"] = "3"
	value, err = evaluateExpression("pi", sc, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, intValue(3))

	sc.properties["origin"] = block{&Element{Name: "origin"}}
	_, err = evaluateExpression("origin", sc, "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "block property")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "limits.yaml"), []byte(`joint1:
  velocity: 16.75
  names: [a, b]
1: one
`), 0o600), test.ShouldBeNil)

	value, err := evaluateExpression("xacro.load_yaml('limits.yaml')", newScope(nil), dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldResemble, map[string]interface{}{
		"joint1": map[string]interface{}{
			"velocity": 16.75,
			"names":    []interface{}{"a", "b"},
		},
		"1": "one",
	})

	value, err = evaluateExpression("load_yaml('"+filepath.Join(dir, "limits.yaml")+"').joint1.names[1]", newScope(nil), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, "b")

	_, err = evaluateExpression("xacro.load_yaml('absent.yaml')", newScope(nil), dir)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such file")
}

func TestLiteralValue(t *testing.T) {
	test.That(t, literalValue("12"), test.ShouldEqual, intValue(12))
	test.That(t, literalValue(" 1.25 "), test.ShouldEqual, 1.25)
	test.That(t, literalValue("True"), test.ShouldEqual, true)
	test.That(t, literalValue("false"), test.ShouldEqual, false)
	test.That(t, literalValue("'quoted'"), test.ShouldEqual, "quoted")
	test.That(t, literalValue("1_000"), test.ShouldEqual, "1_000")
	test.That(t, literalValue("v10"), test.ShouldEqual, "v10")
	test.That(t, literalValue(2.5), test.ShouldEqual, 2.5)
}

func TestBooleanValue(t *testing.T) {
	for _, tc := range []struct {
		value    interface{}
		expected bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"True", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{intValue(2), true},
		{0.0, false},
	} {
		got, err := booleanValue(tc.value, "cond")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, tc.expected)
	}

	for _, bad := range []interface{}{"yes", "TRUE", "", "1.5"} {
		_, err := booleanValue(bad, "cond")
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestFormatValue(t *testing.T) {
	for _, tc := range []struct {
		value    interface{}
		expected string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "True"},
		{false, "False"},
		{intValue(-7), "-7"},
		{1.0, "1.0"},
		{0.05, "0.05"},
		{-1.5707963267948966, "-1.5707963267948966"},
		{1e16, "1e+16"},
		{0.00001, "1e-05"},
		{123456.0, "123456.0"},
		{math.Inf(1), "inf"},
		{[]interface{}{intValue(1), "a", nil, 0.5}, "[1, 'a', None, 0.5]"},
		{map[string]interface{}{"b": intValue(2), "a": "x"}, "{'a': 'x', 'b': 2}"},
	} {
		test.That(t, formatValue(tc.value), test.ShouldEqual, tc.expected)
	}
}

func TestSplitSegments(t *testing.T) {
	segments, err := splitSegments("a${b}c$(arg d)$${e}$$(f)$")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, segments, test.ShouldResemble, []segment{
		{kind: literalSegment, text: "a"},
		{kind: expressionSegment, text: "b"},
		{kind: literalSegment, text: "c"},
		{kind: substitutionSegment, text: "arg d"},
		{kind: literalSegment, text: "${e}$(f)$"},
	})

	segments, err = splitSegments("${'}' + x}")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, segments, test.ShouldResemble, []segment{{kind: expressionSegment, text: "'}' + x"}})

	_, err = splitSegments("${open")
	test.That(t, err, test.ShouldNotBeNil)
}

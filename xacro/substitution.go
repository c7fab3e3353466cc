package xacro

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type segmentKind int

const (
	literalSegment segmentKind = iota
	// ${...}
	expressionSegment
	// $(...)
	substitutionSegment
)

type segment struct {
	kind segmentKind
	text string
}

// splitSegments splits text into literal runs, ${...} expressions and $(...) substitution
// arguments. "$${" and "$$(" escape a literal "${" and "$(".
func splitSegments(text string) ([]segment, error) {
	var (
		segments []segment
		literal  strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{kind: literalSegment, text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(text); {
		if text[i] != '$' || i+1 >= len(text) {
			literal.WriteByte(text[i])
			i++
			continue
		}
		next := text[i+1]
		if next == '$' && i+2 < len(text) && (text[i+2] == '{' || text[i+2] == '(') {
			literal.WriteByte('$')
			literal.WriteByte(text[i+2])
			i += 3
			continue
		}
		if next != '{' && next != '(' {
			literal.WriteByte(text[i])
			i++
			continue
		}

		closing := byte('}')
		kind := expressionSegment
		if next == '(' {
			closing = ')'
			kind = substitutionSegment
		}
		end, err := matchingClose(text, i+1, next, closing)
		if err != nil {
			return nil, err
		}
		flush()
		segments = append(segments, segment{kind: kind, text: text[i+2 : end]})
		i = end + 1
	}
	flush()
	return segments, nil
}

// matchingClose returns the index of the delimiter closing the one at start, skipping quoted
// strings.
func matchingClose(text string, start int, opening, closing byte) (int, error) {
	depth := 0
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == opening:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.Errorf("unbalanced %q in %q", string(opening), text)
}

// evalValue evaluates text. Text consisting of exactly one ${...} keeps the expression's type;
// anything else is concatenated into a string.
func (r *run) evalValue(text string, sc *scope) (interface{}, error) {
	segments, err := splitSegments(text)
	if err != nil {
		return nil, err
	}
	if len(segments) == 1 && segments[0].kind == expressionSegment {
		return r.expression(segments[0].text, sc)
	}

	var out strings.Builder
	for _, seg := range segments {
		switch seg.kind {
		case literalSegment:
			out.WriteString(seg.text)
		case expressionSegment:
			value, err := r.expression(seg.text, sc)
			if err != nil {
				return nil, err
			}
			out.WriteString(formatValue(value))
		case substitutionSegment:
			value, err := r.substitute(seg.text, sc)
			if err != nil {
				return nil, err
			}
			out.WriteString(value)
		}
	}
	return out.String(), nil
}

// expression evaluates the body of ${...}. Substitution arguments inside it are resolved first, so
// ${'$(arg ee_type)' != 'none'} compares the argument's value.
func (r *run) expression(body string, sc *scope) (interface{}, error) {
	if strings.Contains(body, "$(") {
		expanded, err := r.evalText(body, sc)
		if err != nil {
			return nil, err
		}
		body = expanded
	}
	return evaluateExpression(body, sc, r.currentDir())
}

// evalText evaluates text into its string form.
func (r *run) evalText(text string, sc *scope) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}
	value, err := r.evalValue(text, sc)
	if err != nil {
		return "", err
	}
	return formatValue(value), nil
}

// substitute resolves the body of a $(...) substitution argument.
func (r *run) substitute(body string, sc *scope) (string, error) {
	trimmed := strings.TrimSpace(body)
	command, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	if command == "eval" {
		value, err := evaluateExpression(rest, sc, r.currentDir())
		if err != nil {
			return "", err
		}
		return formatValue(value), nil
	}
	if strings.Contains(rest, "$(") {
		expanded, err := r.evalText(rest, sc)
		if err != nil {
			return "", err
		}
		rest = expanded
	}
	fields := strings.Fields(rest)

	switch command {
	case "arg":
		if len(fields) != 1 {
			return "", errors.Errorf("$(arg) expects one argument, got %q", body)
		}
		value, ok := r.args[fields[0]]
		if !ok {
			return "", NewUndefinedArgumentError(fields[0])
		}
		return value, nil
	case "find":
		if len(fields) != 1 {
			return "", errors.Errorf("$(find) expects one argument, got %q", body)
		}
		if r.p.finder == nil {
			return "", errors.Errorf("cannot resolve $(find %s): no package index configured", fields[0])
		}
		return r.p.finder.ShareDirectory(fields[0])
	case "env":
		if len(fields) != 1 {
			return "", errors.Errorf("$(env) expects one argument, got %q", body)
		}
		value, ok := r.p.lookupEnv(fields[0])
		if !ok {
			return "", errors.Errorf("environment variable %q is not set", fields[0])
		}
		return value, nil
	case "optenv":
		if len(fields) == 0 {
			return "", errors.Errorf("$(optenv) expects at least one argument, got %q", body)
		}
		if value, ok := r.p.lookupEnv(fields[0]); ok {
			return value, nil
		}
		return strings.Join(fields[1:], " "), nil
	case "dirname":
		return filepath.Dir(r.currentFile()), nil
	default:
		return "", errors.Errorf("unknown substitution argument $(%s)", trimmed)
	}
}

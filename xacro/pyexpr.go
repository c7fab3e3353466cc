package xacro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ${...} bodies are Python expressions. translateExpression parses the subset xacro files use and
// emits CEL in which every Python operator is a py_* function call, so Python's numeric and
// truthiness rules hold regardless of CEL's own typing.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokFloat
	tokString
	tokName
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Two character operators come first so that "**" is not read as two "*".
var pyOperators = []string{
	"**", "//", "==", "!=", "<=", ">=",
	"+", "-", "*", "/", "%", "<", ">", "(", ")", "[", "]", ",", ".", ":",
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'' || c == '"':
			value, end, err := scanString(expr, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: value, pos: i})
			i = end
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(expr) && unicode.IsDigit(rune(expr[i+1]))):
			tok, end := scanNumber(expr, i)
			toks = append(toks, tok)
			i = end
		case c == '_' || unicode.IsLetter(c):
			end := i
			for end < len(expr) && (expr[end] == '_' || unicode.IsLetter(rune(expr[end])) || unicode.IsDigit(rune(expr[end]))) {
				end++
			}
			toks = append(toks, token{kind: tokName, text: expr[i:end], pos: i})
			i = end
		default:
			op := ""
			for _, candidate := range pyOperators {
				if strings.HasPrefix(expr[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" {
				return nil, errors.Errorf("unexpected %q at offset %d", string(c), i)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(expr)}), nil
}

// scanString decodes the quoted literal starting at start and returns the offset after it.
func scanString(expr string, start int) (string, int, error) {
	quote := expr[start]
	var out strings.Builder
	for i := start + 1; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == quote:
			return out.String(), i + 1, nil
		case c == '\\' && i+1 < len(expr):
			i++
			switch expr[i] {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case '\\', '\'', '"':
				out.WriteByte(expr[i])
			default:
				out.WriteByte('\\')
				out.WriteByte(expr[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return "", 0, errors.Errorf("unterminated string literal in expression %q", expr)
}

func scanNumber(expr string, start int) (token, int) {
	kind := tokInt
	end := start
	for end < len(expr) {
		c := expr[end]
		switch {
		case c >= '0' && c <= '9', c == '_':
		case c == '.':
			kind = tokFloat
		case (c == 'e' || c == 'E') && end > start:
			kind = tokFloat
			if end+1 < len(expr) && (expr[end+1] == '+' || expr[end+1] == '-') {
				end++
			}
		default:
			return token{kind: kind, text: strings.ReplaceAll(expr[start:end], "_", ""), pos: start}, end
		}
		end++
	}
	return token{kind: kind, text: strings.ReplaceAll(expr[start:end], "_", ""), pos: start}, end
}

// operand is a parsed subexpression. A bare dotted name such as math.pi or xacro.load_yaml stays
// qualified until it is known whether it is called or read.
type operand struct {
	src       string
	qualified string
}

type exprParser struct {
	expr  string
	toks  []token
	pos   int
	temps int
	// bind returns the CEL variable holding a property or constant.
	bind func(name string) (string, error)
}

// translateExpression parses a Python expression and returns its CEL form.
func translateExpression(expr string, bind func(name string) (string, error)) (string, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return "", err
	}
	p := &exprParser{expr: expr, toks: toks, bind: bind}
	src, err := p.conditional()
	if err != nil {
		return "", err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return "", p.unexpected(tok)
	}
	return src, nil
}

func (p *exprParser) peek() token {
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// accept consumes the next token when it is the operator or keyword text.
func (p *exprParser) accept(text string) bool {
	tok := p.peek()
	if (tok.kind == tokOp || tok.kind == tokName) && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expect(text string) error {
	if !p.accept(text) {
		return p.unexpected(p.peek())
	}
	return nil
}

func (p *exprParser) unexpected(tok token) error {
	if tok.kind == tokEOF {
		return errors.Errorf("invalid expression %q: unexpected end", p.expr)
	}
	return errors.Errorf("invalid expression %q: unexpected %q at offset %d", p.expr, tok.text, tok.pos)
}

func (p *exprParser) temp() string {
	name := fmt.Sprintf("t%d", p.temps)
	p.temps++
	return name
}

// conditional parses "a if cond else b".
func (p *exprParser) conditional() (string, error) {
	then, err := p.or()
	if err != nil {
		return "", err
	}
	if !p.accept("if") {
		return then, nil
	}
	cond, err := p.or()
	if err != nil {
		return "", err
	}
	if err := p.expect("else"); err != nil {
		return "", err
	}
	els, err := p.conditional()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(py_truth(%s) ? dyn(%s) : dyn(%s))", cond, then, els), nil
}

// or and and return one of their operands, as Python does, and only evaluate the right one when
// needed.
func (p *exprParser) or() (string, error) {
	lhs, err := p.and()
	if err != nil {
		return "", err
	}
	for p.accept("or") {
		rhs, err := p.and()
		if err != nil {
			return "", err
		}
		t := p.temp()
		lhs = fmt.Sprintf("cel.bind(%s, %s, py_truth(%s) ? dyn(%s) : dyn(%s))", t, lhs, t, t, rhs)
	}
	return lhs, nil
}

func (p *exprParser) and() (string, error) {
	lhs, err := p.not()
	if err != nil {
		return "", err
	}
	for p.accept("and") {
		rhs, err := p.not()
		if err != nil {
			return "", err
		}
		t := p.temp()
		lhs = fmt.Sprintf("cel.bind(%s, %s, py_truth(%s) ? dyn(%s) : dyn(%s))", t, lhs, t, rhs, t)
	}
	return lhs, nil
}

func (p *exprParser) not() (string, error) {
	if p.accept("not") {
		x, err := p.not()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("!py_truth(%s)", x), nil
	}
	return p.comparison()
}

var comparisonFuncs = map[string]string{
	"==": "py_eq", "!=": "py_ne", "<": "py_lt", "<=": "py_le", ">": "py_gt", ">=": "py_ge",
}

// comparison handles chains such as "0 < x <= 1", which Python reads as "0 < x and x <= 1".
func (p *exprParser) comparison() (string, error) {
	lhs, err := p.arith()
	if err != nil {
		return "", err
	}
	var terms []string
	for {
		tok := p.peek()
		format := ""
		switch {
		case tok.kind == tokOp && comparisonFuncs[tok.text] != "":
			p.next()
			format = comparisonFuncs[tok.text] + "(%s, %s)"
		case tok.kind == tokName && tok.text == "in":
			p.next()
			format = "py_in(%s, %s)"
		case tok.kind == tokName && tok.text == "not":
			p.next()
			if err := p.expect("in"); err != nil {
				return "", err
			}
			format = "!py_in(%s, %s)"
		case tok.kind == tokName && tok.text == "is":
			p.next()
			format = "py_eq(%s, %s)"
			if p.accept("not") {
				format = "py_ne(%s, %s)"
			}
		}
		if format == "" {
			break
		}
		rhs, err := p.arith()
		if err != nil {
			return "", err
		}
		terms = append(terms, fmt.Sprintf(format, lhs, rhs))
		lhs = rhs
	}
	switch len(terms) {
	case 0:
		return lhs, nil
	case 1:
		return terms[0], nil
	default:
		return "(" + strings.Join(terms, " && ") + ")", nil
	}
}

func (p *exprParser) arith() (string, error) {
	return p.binaryChain(p.term, map[string]string{"+": "py_add", "-": "py_sub"})
}

func (p *exprParser) term() (string, error) {
	return p.binaryChain(p.factor, map[string]string{
		"*": "py_mul", "/": "py_truediv", "//": "py_floordiv", "%": "py_mod",
	})
}

// binaryChain parses left associative operators of one precedence level.
func (p *exprParser) binaryChain(operandFn func() (string, error), funcs map[string]string) (string, error) {
	lhs, err := operandFn()
	if err != nil {
		return "", err
	}
	for {
		tok := p.peek()
		fn, ok := funcs[tok.text]
		if tok.kind != tokOp || !ok {
			return lhs, nil
		}
		p.next()
		rhs, err := operandFn()
		if err != nil {
			return "", err
		}
		lhs = fmt.Sprintf("%s(%s, %s)", fn, lhs, rhs)
	}
}

func (p *exprParser) factor() (string, error) {
	switch {
	case p.accept("-"):
		x, err := p.factor()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("py_neg(%s)", x), nil
	case p.accept("+"):
		return p.factor()
	}
	return p.power()
}

// power is right associative and binds tighter than a unary minus on its left: -2**2 is -4.
func (p *exprParser) power() (string, error) {
	op, err := p.postfix()
	if err != nil {
		return "", err
	}
	base, err := p.materialize(op)
	if err != nil {
		return "", err
	}
	if !p.accept("**") {
		return base, nil
	}
	exp, err := p.factor()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("py_pow(%s, %s)", base, exp), nil
}

func (p *exprParser) postfix() (operand, error) {
	op, err := p.atom()
	if err != nil {
		return operand{}, err
	}
	for {
		switch {
		case p.accept("."):
			tok := p.next()
			if tok.kind != tokName {
				return operand{}, p.unexpected(tok)
			}
			if op.qualified != "" {
				op.qualified += "." + tok.text
				continue
			}
			op.src = fmt.Sprintf("py_attr(%s, %s)", op.src, strconv.Quote(tok.text))
		case p.accept("("):
			args, err := p.list(")")
			if err != nil {
				return operand{}, err
			}
			if op, err = p.call(op, args); err != nil {
				return operand{}, err
			}
		case p.accept("["):
			x, err := p.materialize(op)
			if err != nil {
				return operand{}, err
			}
			index, err := p.conditional()
			if err != nil {
				return operand{}, err
			}
			if p.peek().text == ":" {
				return operand{}, errors.Errorf("invalid expression %q: slices are not supported", p.expr)
			}
			if err := p.expect("]"); err != nil {
				return operand{}, err
			}
			op = operand{src: fmt.Sprintf("py_index(%s, %s)", x, index)}
		default:
			return op, nil
		}
	}
}

func (p *exprParser) call(fn operand, args []string) (operand, error) {
	name := fn.qualified
	switch {
	case name == "":
		return operand{}, errors.Errorf("invalid expression %q: only named functions can be called", p.expr)
	case name == "xacro.load_yaml" || name == "load_yaml":
		if len(args) != 1 {
			return operand{}, errors.Errorf("%s() takes exactly one argument (%d given)", name, len(args))
		}
		return operand{src: fmt.Sprintf("py_load_yaml(%s)", args[0])}, nil
	case pyBuiltins[name] == nil:
		return operand{}, errors.Errorf("unknown function %s() in expression %q", name, p.expr)
	}
	return operand{src: fmt.Sprintf("py_call(%s, [%s])", strconv.Quote(name), dynList(args))}, nil
}

// list parses comma separated expressions up to closing. A trailing comma is allowed.
func (p *exprParser) list(closing string) ([]string, error) {
	var elems []string
	for !p.accept(closing) {
		elem, err := p.conditional()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if !p.accept(",") {
			if err := p.expect(closing); err != nil {
				return nil, err
			}
			break
		}
	}
	return elems, nil
}

func dynList(elems []string) string {
	wrapped := make([]string, len(elems))
	for i, elem := range elems {
		wrapped[i] = "dyn(" + elem + ")"
	}
	return strings.Join(wrapped, ", ")
}

func (p *exprParser) atom() (operand, error) {
	tok := p.next()
	switch tok.kind {
	case tokInt:
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return operand{}, errors.Errorf("invalid integer %q in expression %q", tok.text, p.expr)
		}
		return operand{src: strconv.FormatInt(i, 10)}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil || math.IsInf(f, 0) {
			return operand{}, errors.Errorf("invalid number %q in expression %q", tok.text, p.expr)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return operand{src: s}, nil
	case tokString:
		// Adjacent literals concatenate.
		value := tok.text
		for p.peek().kind == tokString {
			value += p.next().text
		}
		return operand{src: strconv.Quote(value)}, nil
	case tokName:
		switch tok.text {
		case "True":
			return operand{src: "true"}, nil
		case "False":
			return operand{src: "false"}, nil
		case "None":
			return operand{src: "null"}, nil
		case "and", "or", "not", "if", "else", "in", "is", "lambda":
			return operand{}, p.unexpected(tok)
		}
		return operand{qualified: tok.text}, nil
	case tokOp:
		switch tok.text {
		case "(":
			elems, err := p.list(")")
			if err != nil {
				return operand{}, err
			}
			if len(elems) == 1 && p.toks[p.pos-2].text != "," {
				return operand{src: "(" + elems[0] + ")"}, nil
			}
			// Tuples behave as lists.
			return operand{src: "[" + dynList(elems) + "]"}, nil
		case "[":
			elems, err := p.list("]")
			if err != nil {
				return operand{}, err
			}
			return operand{src: "[" + dynList(elems) + "]"}, nil
		}
	}
	return operand{}, p.unexpected(tok)
}

// materialize turns a dotted name into a read: math.pi is a constant, limits.joint1 is an
// attribute of the limits property.
func (p *exprParser) materialize(op operand) (string, error) {
	if op.qualified == "" {
		return op.src, nil
	}
	if _, ok := mathConstants[op.qualified]; ok && strings.Contains(op.qualified, ".") {
		return p.bind(op.qualified)
	}
	parts := strings.Split(op.qualified, ".")
	src, err := p.bind(parts[0])
	if err != nil {
		return "", err
	}
	for _, attr := range parts[1:] {
		src = fmt.Sprintf("py_attr(%s, %s)", src, strconv.Quote(attr))
	}
	return src, nil
}

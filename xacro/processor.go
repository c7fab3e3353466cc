// Package xacro expands xacro robot description templates into plain URDF documents.
//
// The native Processor supports the directives robot descriptions use in practice: xacro:arg,
// xacro:property (value, default and block forms), xacro:if and xacro:unless, xacro:include,
// xacro:macro with plain, default, inherited and block parameters, xacro:call,
// xacro:insert_block, xacro:element and xacro:attribute. Text and attribute values may contain
// $(arg), $(find), $(env), $(optenv), $(dirname) and $(eval) substitution arguments and ${...}
// expressions. CommandEngine delegates to an installed xacro executable instead.
package xacro

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/openarm/display/logging"
)

const (
	namespacePrefix = "xacro:"
	namespaceAttr   = "xmlns:xacro"

	// maxDepth bounds macro recursion and include nesting.
	maxDepth = 100
)

// PackageFinder resolves the share directory used by $(find package).
type PackageFinder interface {
	ShareDirectory(pkg string) (string, error)
}

// Processor expands xacro files natively. It holds no per-document state and may be reused.
type Processor struct {
	finder    PackageFinder
	logger    logging.Logger
	lookupEnv func(string) (string, bool)
}

// NewProcessor returns a Processor resolving $(find) through finder, which may be nil when the
// templates do not use it.
func NewProcessor(finder PackageFinder, logger logging.Logger) *Processor {
	return &Processor{finder: finder, logger: logger, lookupEnv: os.LookupEnv}
}

// Process expands the xacro file at path. mappings preset xacro:arg values and take precedence over
// declared defaults.
func (p *Processor) Process(ctx context.Context, path string, mappings map[string]string) (*Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	root, err := readTemplate(absPath)
	if err != nil {
		return nil, err
	}

	r := &run{
		ctx:   ctx,
		p:     p,
		args:  make(map[string]string, len(mappings)),
		files: []string{absPath},
	}
	for name, value := range mappings {
		r.args[name] = value
	}

	p.logger.Debugw("processing xacro", "file", absPath, "mappings", mappings)
	out, err := r.expandElement(root, newScope(nil))
	if err != nil {
		return nil, wrapInFile(err, absPath)
	}
	return &Document{Root: out}, nil
}

func readTemplate(path string) (*Element, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading xacro file")
	}
	root, err := parseElementTree(bytes.NewReader(data))
	if err != nil {
		return nil, wrapInFile(err, path)
	}
	return root, nil
}

// run is the state of a single Process call.
type run struct {
	ctx   context.Context
	p     *Processor
	args  map[string]string
	files []string
	depth int
}

func (r *run) currentFile() string {
	return r.files[len(r.files)-1]
}

// currentDir is where relative names in the current file resolve.
func (r *run) currentDir() string {
	return filepath.Dir(r.currentFile())
}

// expandElement copies a non-xacro element, evaluating its attributes and children.
func (r *run) expandElement(elem *Element, sc *scope) (*Element, error) {
	out := &Element{Name: elem.Name}
	for _, attr := range elem.Attrs {
		if attr.Name == namespaceAttr {
			continue
		}
		value, err := r.evalText(attr.Value, sc)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s of <%s>", attr.Name, elem.Name)
		}
		out.Attrs = append(out.Attrs, Attr{Name: attr.Name, Value: value})
	}
	if err := r.processChildren(out, elem.Children, sc); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *run) processChildren(out *Element, children []Node, sc *scope) error {
	for _, child := range children {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		switch node := child.(type) {
		case *Text:
			text, err := r.evalText(node.Data, sc)
			if err != nil {
				return err
			}
			if text = strings.TrimSpace(text); text != "" {
				out.Children = append(out.Children, &Text{Data: text})
			}
		case *Comment:
			out.Children = append(out.Children, &Comment{Data: node.Data})
		case *Element:
			if strings.HasPrefix(node.Name, namespacePrefix) {
				if err := r.directive(out, node, sc); err != nil {
					return err
				}
				continue
			}
			expanded, err := r.expandElement(node, sc)
			if err != nil {
				return err
			}
			out.Children = append(out.Children, expanded)
		}
	}
	return nil
}

func (r *run) directive(out, elem *Element, sc *scope) error {
	local := strings.TrimPrefix(elem.Name, namespacePrefix)
	switch local {
	case "property":
		return r.defineProperty(elem, sc)
	case "arg":
		return r.declareArg(elem, sc)
	case "include":
		return r.include(out, elem, sc)
	case "if", "unless":
		condition, ok := elem.Attr("value")
		if !ok {
			return errors.Errorf("xacro:%s is missing the value attribute", local)
		}
		value, err := r.evalValue(condition, sc)
		if err != nil {
			return err
		}
		keep, err := booleanValue(value, condition)
		if err != nil {
			return err
		}
		if local == "unless" {
			keep = !keep
		}
		if !keep {
			return nil
		}
		return r.processChildren(out, elem.Children, sc)
	case "macro":
		return r.defineMacro(elem, sc)
	case "insert_block":
		name, err := r.requiredAttr(elem, "name", sc)
		if err != nil {
			return err
		}
		value, found := sc.lookupProperty(name)
		if !found {
			return NewUndefinedPropertyError(name)
		}
		blk, ok := value.(block)
		if !ok {
			return errors.Errorf("property %q is not a block", name)
		}
		return r.processChildren(out, cloneNodes(blk), sc)
	case "call":
		name, err := r.requiredAttr(elem, "macro", sc)
		if err != nil {
			return err
		}
		return r.callMacro(out, strings.TrimPrefix(name, namespacePrefix), elem, sc, "macro")
	case "element":
		name, err := r.requiredAttr(elem, "xacro:name", sc)
		if err != nil {
			return err
		}
		generated := &Element{Name: name, Attrs: nil, Children: elem.Children}
		for _, attr := range elem.Attrs {
			if attr.Name != "xacro:name" {
				generated.Attrs = append(generated.Attrs, attr)
			}
		}
		expanded, err := r.expandElement(generated, sc)
		if err != nil {
			return err
		}
		out.Children = append(out.Children, expanded)
		return nil
	case "attribute":
		name, err := r.requiredAttr(elem, "name", sc)
		if err != nil {
			return err
		}
		value, err := r.requiredAttr(elem, "value", sc)
		if err != nil {
			return err
		}
		out.SetAttr(name, value)
		return nil
	default:
		return r.callMacro(out, local, elem, sc, "")
	}
}

func (r *run) requiredAttr(elem *Element, name string, sc *scope) (string, error) {
	raw, ok := elem.Attr(name)
	if !ok {
		return "", errors.Errorf("<%s> is missing the %s attribute", elem.Name, name)
	}
	return r.evalText(raw, sc)
}

func (r *run) defineProperty(elem *Element, sc *scope) error {
	name, ok := elem.Attr("name")
	if !ok || name == "" {
		return errors.New("xacro:property is missing the name attribute")
	}
	scopeAttr, _ := elem.Attr("scope")
	target := sc.target(scopeAttr)

	if raw, ok := elem.Attr("value"); ok {
		value, err := r.evalValue(raw, sc)
		if err != nil {
			return errors.Wrapf(err, "property %s", name)
		}
		target.properties[name] = value
		return nil
	}
	if raw, ok := elem.Attr("default"); ok {
		if _, exists := sc.lookupProperty(name); exists {
			return nil
		}
		value, err := r.evalValue(raw, sc)
		if err != nil {
			return errors.Wrapf(err, "property %s", name)
		}
		target.properties[name] = value
		return nil
	}
	target.properties[name] = block(cloneNodes(elem.Children))
	return nil
}

func (r *run) declareArg(elem *Element, sc *scope) error {
	name, ok := elem.Attr("name")
	if !ok || name == "" {
		return errors.New("xacro:arg is missing the name attribute")
	}
	if _, mapped := r.args[name]; mapped {
		return nil
	}
	raw, ok := elem.Attr("default")
	if !ok {
		return nil
	}
	value, err := r.evalText(raw, sc)
	if err != nil {
		return errors.Wrapf(err, "default of argument %s", name)
	}
	r.args[name] = value
	return nil
}

func (r *run) include(out, elem *Element, sc *scope) error {
	if _, ok := elem.Attr("ns"); ok {
		return errors.New("namespaced includes are not supported")
	}
	filename, err := r.requiredAttr(elem, "filename", sc)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(filepath.Dir(r.currentFile()), filename)
	}

	files := []string{filename}
	if strings.ContainsAny(filename, "*?[") {
		files, err = filepath.Glob(filename)
		if err != nil {
			return errors.Wrapf(err, "include pattern %s", filename)
		}
		if len(files) == 0 {
			r.p.logger.Warnw("include pattern matched no files", "pattern", filename)
		}
		sort.Strings(files)
	}

	for _, file := range files {
		if len(r.files) > maxDepth {
			return errors.Errorf("includes nested deeper than %d files at %s", maxDepth, file)
		}
		root, err := readTemplate(file)
		if err != nil {
			return err
		}
		r.p.logger.Debugw("including xacro", "file", file)
		r.files = append(r.files, file)
		err = r.processChildren(out, root.Children, sc)
		r.files = r.files[:len(r.files)-1]
		if err != nil {
			return wrapInFile(err, file)
		}
	}
	return nil
}

func (r *run) defineMacro(elem *Element, sc *scope) error {
	name, ok := elem.Attr("name")
	if !ok || name == "" {
		return errors.New("xacro:macro is missing the name attribute")
	}
	name = strings.TrimPrefix(name, namespacePrefix)
	paramsAttr, _ := elem.Attr("params")
	params, err := parseMacroParams(paramsAttr)
	if err != nil {
		return errors.Wrapf(err, "macro %s", name)
	}
	sc.macros[name] = &macro{name: name, params: params, body: elem.clone().(*Element)}
	return nil
}

func parseMacroParams(spec string) ([]macroParam, error) {
	var params []macroParam
	seen := map[string]bool{}
	for _, field := range strings.Fields(spec) {
		var param macroParam
		switch {
		case strings.HasPrefix(field, "**"):
			param.blockDepth = 2
			field = field[2:]
		case strings.HasPrefix(field, "*"):
			param.blockDepth = 1
			field = field[1:]
		}
		name, def, hasDefault := strings.Cut(field, ":=")
		if name == "" {
			return nil, errors.Errorf("invalid parameter %q", field)
		}
		param.name = name
		if hasDefault {
			if param.blockDepth > 0 {
				return nil, errors.Errorf("block parameter %s cannot have a default", name)
			}
			param.hasDefault = true
			if strings.HasPrefix(def, "^") {
				param.inherit = true
				def = strings.TrimPrefix(def, "^")
				if strings.HasPrefix(def, "|") {
					def = def[1:]
				} else {
					param.hasDefault = false
				}
			}
			param.defaultVal = def
		}
		if seen[name] {
			return nil, errors.Errorf("duplicate parameter %s", name)
		}
		seen[name] = true
		params = append(params, param)
	}
	return params, nil
}

func (r *run) callMacro(out *Element, name string, call *Element, sc *scope, skipAttr string) error {
	m, ok := sc.lookupMacro(name)
	if !ok {
		return NewUnknownMacroError(name)
	}
	if r.depth >= maxDepth {
		return errors.Errorf("macro %s recursed deeper than %d calls", name, maxDepth)
	}
	r.depth++
	defer func() { r.depth-- }()

	callScope := newScope(sc)
	given := map[string]bool{}
	for _, attr := range call.Attrs {
		if attr.Name == skipAttr {
			continue
		}
		if !m.hasValueParam(attr.Name) {
			return errors.Errorf("invalid parameter %q while expanding macro %q", attr.Name, name)
		}
		value, err := r.evalValue(attr.Value, sc)
		if err != nil {
			return errors.Wrapf(err, "parameter %s of macro %s", attr.Name, name)
		}
		callScope.properties[attr.Name] = value
		given[attr.Name] = true
	}

	blocks := call.ChildElements()
	used := 0
	var missing []string
	for _, param := range m.params {
		if param.blockDepth > 0 {
			if used >= len(blocks) {
				return errors.Errorf("not enough blocks while expanding macro %q", name)
			}
			blk := blocks[used]
			used++
			if param.blockDepth == 2 {
				callScope.properties[param.name] = block(cloneNodes(blk.Children))
			} else {
				callScope.properties[param.name] = block{blk.clone()}
			}
			continue
		}
		if given[param.name] {
			continue
		}
		if param.inherit {
			if value, found := sc.lookupProperty(param.name); found {
				callScope.properties[param.name] = value
				continue
			}
		}
		if param.hasDefault {
			value, err := r.evalValue(param.defaultVal, callScope)
			if err != nil {
				return errors.Wrapf(err, "default of parameter %s of macro %s", param.name, name)
			}
			callScope.properties[param.name] = value
			continue
		}
		missing = append(missing, param.name)
	}
	if len(missing) > 0 {
		return errors.Errorf("undefined parameters [%s] while expanding macro %q", strings.Join(missing, ", "), name)
	}
	if used < len(blocks) {
		return errors.Errorf("unused block <%s> while expanding macro %q", blocks[used].Name, name)
	}

	body := m.body.clone().(*Element)
	return r.processChildren(out, body.Children, callScope)
}

func (m *macro) hasValueParam(name string) bool {
	for _, param := range m.params {
		if param.name == name && param.blockDepth == 0 {
			return true
		}
	}
	return false
}

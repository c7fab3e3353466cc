package xacro

// block is a property or macro parameter holding XML content to be inserted later.
type block []Node

type macro struct {
	name   string
	params []macroParam
	body   *Element
}

type macroParam struct {
	name string
	// blockDepth is 1 for *name (insert the element) and 2 for **name (insert its children).
	blockDepth int
	hasDefault bool
	defaultVal string
	// inherit is set for name:=^ and name:=^|default, which take the caller's property.
	inherit bool
}

// scope is one level of property and macro definitions. Macro calls open a child scope of the
// calling scope.
type scope struct {
	parent     *scope
	properties map[string]interface{}
	macros     map[string]*macro
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:     parent,
		properties: map[string]interface{}{},
		macros:     map[string]*macro{},
	}
}

func (sc *scope) lookupProperty(name string) (interface{}, bool) {
	for cur := sc; cur != nil; cur = cur.parent {
		if value, ok := cur.properties[name]; ok {
			return value, true
		}
	}
	return nil, false
}

func (sc *scope) lookupMacro(name string) (*macro, bool) {
	for cur := sc; cur != nil; cur = cur.parent {
		if m, ok := cur.macros[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// target returns the scope a definition with the given scope attribute belongs to.
func (sc *scope) target(scopeAttr string) *scope {
	switch scopeAttr {
	case "parent":
		if sc.parent != nil {
			return sc.parent
		}
	case "global":
		cur := sc
		for cur.parent != nil {
			cur = cur.parent
		}
		return cur
	}
	return sc
}

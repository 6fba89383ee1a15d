package sir

// Program is the set of functions of one unit, including external stubs for
// callees defined elsewhere.
type Program struct {
	funcs  []*Func
	byName map[string]*Func
}

// NewProgram creates a program from the given functions.
func NewProgram(funcs ...*Func) *Program {
	p := &Program{byName: make(map[string]*Func)}
	for _, f := range funcs {
		p.Add(f)
	}
	return p
}

// Add registers a function. A function with the same name replaces the old one.
func (p *Program) Add(f *Func) {
	if old, ok := p.byName[f.Name]; ok {
		for i, x := range p.funcs {
			if x == old {
				p.funcs[i] = f
			}
		}
	} else {
		p.funcs = append(p.funcs, f)
	}
	p.byName[f.Name] = f
}

// Lookup finds a function by name.
func (p *Program) Lookup(name string) *Func {
	return p.byName[name]
}

// Funcs lists functions in registration order.
func (p *Program) Funcs() []*Func {
	return p.funcs
}

// Bodies lists functions having a body.
func (p *Program) Bodies() []*Func {
	var res []*Func
	for _, f := range p.funcs {
		if !f.External && len(f.Blocks) > 0 {
			res = append(res, f)
		}
	}
	return res
}

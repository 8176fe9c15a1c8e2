package ir

import "strings"

// Program owns its Funcs by id, monotonically allocated and never recycled
// even after RemoveFunc (spec.md §3.4).
type Program struct {
	funcs   map[FuncID]*Func
	order   []FuncID
	nextID  FuncID
	entry   FuncID
	hasEntryFunc bool
}

// NewProgram creates an empty Program.
func NewProgram() *Program {
	return &Program{funcs: make(map[FuncID]*Func)}
}

// NewFunc allocates a new Func owned by p and returns it.
func (p *Program) NewFunc(name string, sig Signature) *Func {
	id := p.nextID
	p.nextID++
	f := NewFunc(id, name, sig)
	p.funcs[id] = f
	p.order = append(p.order, id)
	return f
}

// DefineFunc creates a func with the given explicit id, advancing the
// program's internal func-id counter past it. It exists alongside NewFunc
// for callers reconstructing a program from a representation (parsed text)
// where func ids are already fixed, possibly non-contiguous from earlier
// removals.
func (p *Program) DefineFunc(id FuncID, name string, sig Signature) *Func {
	f := NewFunc(id, name, sig)
	p.funcs[id] = f
	p.order = append(p.order, id)
	if id >= p.nextID {
		p.nextID = id + 1
	}
	return f
}

// Func returns the func with the given id, or nil.
func (p *Program) Func(id FuncID) *Func { return p.funcs[id] }

// HasFunc reports whether id names a live func.
func (p *Program) HasFunc(id FuncID) bool {
	_, ok := p.funcs[id]
	return ok
}

// Funcs returns the program's live funcs in insertion order.
func (p *Program) Funcs() []*Func {
	out := make([]*Func, 0, len(p.order))
	for _, id := range p.order {
		if f, ok := p.funcs[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// SetEntryFunc designates the program's entry func.
func (p *Program) SetEntryFunc(id FuncID) {
	if _, ok := p.funcs[id]; !ok {
		panic("BUG: ir: SetEntryFunc on unknown func")
	}
	p.entry, p.hasEntryFunc = id, true
}

// EntryFunc returns the program's entry func, or nil if unset.
func (p *Program) EntryFunc() *Func {
	if !p.hasEntryFunc {
		return nil
	}
	return p.funcs[p.entry]
}

// RemoveFunc deletes the func. Its id is never reused by subsequent NewFunc
// calls (spec.md §3.4).
func (p *Program) RemoveFunc(id FuncID) {
	delete(p.funcs, id)
	if p.hasEntryFunc && p.entry == id {
		p.hasEntryFunc = false
	}
}

// Format renders every func in the program in the fixed text form.
func (p *Program) Format() string {
	var sb strings.Builder
	for i, f := range p.Funcs() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(f.Format())
	}
	return sb.String()
}

func (p *Program) String() string { return p.Format() }

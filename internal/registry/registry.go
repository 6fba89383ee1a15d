// Package registry keeps the graph of interesting (function, slot) pairs shared
// by every function visit of one analysis run.
package registry

import (
	"errors"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/sir"
)

type nodeKey struct {
	name string
	num  int
}

// Registry is an arena of nodes indexed by (function name, slot). It is not
// safe for concurrent use.
type Registry struct {
	nodes  []*Node
	index  map[nodeKey]NodeID
	byName map[string][]NodeID
	alias  map[NodeID]NodeID
	log    logrus.FieldLogger
}

// New creates an empty registry.
func New(log logrus.FieldLogger) *Registry {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Registry{
		nodes:  []*Node{nil},
		index:  make(map[nodeKey]NodeID),
		byName: make(map[string][]NodeID),
		alias:  make(map[NodeID]NodeID),
		log:    log,
	}
}

// Node returns the node by its ID, following merges.
func (r *Registry) Node(id NodeID) *Node {
	id = r.resolve(id)
	if id == NoNode || int(id) >= len(r.nodes) {
		return nil
	}
	return r.nodes[id]
}

func (r *Registry) resolve(id NodeID) NodeID {
	for {
		next, ok := r.alias[id]
		if !ok {
			return id
		}
		id = next
	}
}

// Len returns the number of indexed nodes.
func (r *Registry) Len() int {
	return len(r.index)
}

// Nodes lists indexed nodes in creation order.
func (r *Registry) Nodes() []*Node {
	var res []*Node
	for _, n := range r.nodes[1:] {
		if r.live(n) {
			res = append(res, n)
		}
	}
	return res
}

// Func lists live nodes of the function with the given name.
func (r *Registry) Func(name string) []*Node {
	var res []*Node
	for _, id := range r.byName[name] {
		if n := r.nodes[id]; r.live(n) {
			res = append(res, n)
		}
	}
	return res
}

// live reports whether the node was neither dropped nor merged into another.
func (r *Registry) live(n *Node) bool {
	if n.Removed {
		return false
	}
	_, merged := r.alias[n.ID]
	return !merged
}

// Children resolves children of the node.
func (r *Registry) Children(n *Node) []*Node {
	res := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		if c := r.Node(id); c != nil {
			res = append(res, c)
		}
	}
	return res
}

// Lookup returns the node indexed under the exact name and slot.
func (r *Registry) Lookup(name string, num int) *Node {
	id, ok := r.index[nodeKey{name: name, num: num}]
	if !ok {
		return nil
	}
	return r.nodes[id]
}

// LookupOrCreate returns the node of the function slot, creating it with the
// given mark when missing. An existing node gets the stronger of both marks.
// Nodes of clones are linked to the node of the root original.
func (r *Registry) LookupOrCreate(fn *sir.Func, num int, mark Mark) *Node {
	n := r.LookupOrCreateName(fn.Name, num, mark)
	if n.Fn == nil {
		n.Fn = fn
	}
	if n.Orig != NoNode || !MadeByCompiler(fn) {
		return n
	}

	orig := r.OrigFunc(fn)
	if orig == fn {
		return n
	}
	onum, err := cloneargs.ToOriginalChain(fn, num)
	if err != nil {
		r.log.WithError(err).WithField("function", fn.Name).Debug("clone slot has no original counterpart")
		return n
	}
	on := r.LookupOrCreateName(orig.Name, onum, mark)
	if on.Fn == nil && !orig.Deleted {
		on.Fn = orig
	}
	if on != n {
		n.Orig = on.ID
	}
	return n
}

// LookupOrCreateName works like LookupOrCreate for functions known only by name.
func (r *Registry) LookupOrCreateName(name string, num int, mark Mark) *Node {
	if n := r.Lookup(name, num); n != nil {
		n.Mark = Stronger(n.Mark, mark)
		return n
	}

	n := &Node{
		ID:   NodeID(len(r.nodes)),
		Name: name,
		Num:  num,
		Mark: mark,
	}
	r.nodes = append(r.nodes, n)
	r.index[nodeKey{name: name, num: num}] = n.ID
	r.byName[name] = append(r.byName[name], n.ID)
	r.log.WithField("node", n.String()).Debug("new interesting node")
	return n
}

// AddChild records that data of child flows into parent. It reports whether
// the edge is new.
func (r *Registry) AddChild(parent, child *Node) bool {
	if parent == nil || child == nil || parent == child {
		return false
	}
	if slices.Contains(parent.Children, child.ID) {
		return false
	}
	parent.Children = append(parent.Children, child.ID)
	return true
}

// Find resolves the node of the function slot accepted by the filter. A clone
// without its own node is resolved through its chain of originals with the
// slot translated along the way, then by the name with the clone suffix
// stripped. Nil means the slot is not interesting for this edge.
func (r *Registry) Find(fn *sir.Func, num int, filter Filter) *Node {
	if num > len(fn.Params) && fn.Params != nil {
		return nil
	}
	if n := r.Lookup(fn.Name, num); n != nil && filter.accepts(n.Mark) {
		return n
	}
	if !MadeByCompiler(fn) {
		return nil
	}

	slot := num
	for cur := fn; cur.CloneOf != nil; cur = cur.CloneOf {
		next, err := cloneargs.ToOriginal(cur.Skip, slot)
		if err != nil {
			r.miss(fn, num, err)
			return nil
		}
		slot = next
		if cur.CloneOf.Deleted {
			continue
		}
		if n := r.Lookup(cur.CloneOf.Name, slot); n != nil && filter.accepts(n.Mark) {
			return n
		}
	}

	if stripped := StripCloneSuffix(fn.Name); stripped != fn.Name {
		if n := r.Lookup(stripped, slot); n != nil && filter.accepts(n.Mark) {
			return n
		}
	}
	return nil
}

// FindName looks a node up by function name only.
func (r *Registry) FindName(name string, num int, filter Filter) *Node {
	if n := r.Lookup(name, num); n != nil && filter.accepts(n.Mark) {
		return n
	}
	if stripped := StripCloneSuffix(name); stripped != name {
		if n := r.Lookup(stripped, num); n != nil && filter.accepts(n.Mark) {
			return n
		}
	}
	return nil
}

func (r *Registry) miss(fn *sir.Func, num int, err error) {
	if errors.Is(err, cloneargs.ErrNoCounterpart) {
		r.log.WithFields(logrus.Fields{
			"function": fn.Name,
			"slot":     num,
		}).Debug("slot translation miss, treating as uninteresting")
		return
	}
	r.log.WithError(err).WithField("function", fn.Name).Warn("slot translation failed")
}

// FunctionRemoved keeps nodes of a function the host optimizer deleted under
// the name with the clone suffix stripped so that later units still resolve
// them. Nodes whose slot does not exist on the original are dropped.
func (r *Registry) FunctionRemoved(fn *sir.Func) {
	fn.Deleted = true
	ids := r.byName[fn.Name]
	if len(ids) == 0 {
		return
	}

	stripped := StripCloneSuffix(fn.Name)
	if stripped == fn.Name {
		for _, id := range ids {
			r.nodes[id].Fn = nil
		}
		return
	}

	delete(r.byName, fn.Name)
	for _, id := range ids {
		n := r.nodes[id]
		delete(r.index, nodeKey{name: n.Name, num: n.Num})
		n.Fn = nil

		num, err := cloneargs.ToOriginalChain(fn, n.Num)
		if err != nil {
			n.Removed = true
			r.log.WithField("node", n.String()).Debug("drop node of removed function")
			continue
		}

		if old := r.Lookup(stripped, num); old != nil {
			r.merge(old, n)
			continue
		}
		n.Name = stripped
		n.Num = num
		r.index[nodeKey{name: stripped, num: num}] = n.ID
		r.byName[stripped] = append(r.byName[stripped], n.ID)
	}
}

// merge folds n into dst.
func (r *Registry) merge(dst, n *Node) {
	dst.Mark = Stronger(dst.Mark, n.Mark)
	for _, c := range n.Children {
		if c := r.Node(c); c != nil {
			r.AddChild(dst, c)
		}
	}
	r.alias[n.ID] = dst.ID
	if dst.Orig == n.ID {
		dst.Orig = NoNode
	}
}

// MadeByCompiler reports whether the function is an artificial one or a clone.
func MadeByCompiler(fn *sir.Func) bool {
	return fn.Artificial || fn.CloneOf != nil
}

// OrigFunc finds the function a clone was made from. The nearest original
// written by the user wins, then the root of the clone chain when it is alive,
// then the function of the original node known to the registry.
func (r *Registry) OrigFunc(fn *sir.Func) *sir.Func {
	if !MadeByCompiler(fn) {
		return fn
	}
	if fn.CloneOf != nil && !MadeByCompiler(fn.CloneOf) {
		return fn.CloneOf
	}

	root := fn
	for root.CloneOf != nil {
		root = root.CloneOf
	}
	if root != fn && !MadeByCompiler(root) {
		return root
	}

	for cur := fn; cur != nil; cur = cur.CloneOf {
		for _, id := range r.byName[cur.Name] {
			n := r.nodes[id]
			if o := r.Node(n.Orig); o != nil && o.Fn != nil {
				return o.Fn
			}
		}
	}

	if stripped := StripCloneSuffix(fn.Name); stripped != fn.Name {
		for _, id := range r.byName[stripped] {
			if n := r.nodes[id]; n.Fn != nil {
				return n.Fn
			}
		}
	}
	return fn
}

// Correlate translates slot num of node into the slot numbering of target.
// Identical functions and the return slot need no translation. When both are
// compiler made the relation to the original is lost and num is returned as is.
func Correlate(node, target *sir.Func, num int) (int, error) {
	if node == target || num == 0 {
		return num, nil
	}

	nodeClone := node != nil && MadeByCompiler(node)
	targetClone := MadeByCompiler(target)
	switch {
	case nodeClone && targetClone:
		return num, nil
	case nodeClone:
		return cloneargs.ToOriginalChain(node, num)
	case targetClone:
		return cloneargs.ToCloneChain(target, num)
	default:
		return num, nil
	}
}

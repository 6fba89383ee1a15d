// Package lto carries the registry between units as an opaque summary blob and
// merges summaries back for whole program analysis.
package lto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/registry"
)

// Version of the summary layout.
const Version = 1

// Field numbers of the summary layout.
const (
	fieldVersion protowire.Number = 1
	fieldNode    protowire.Number = 2

	fieldNodeName     protowire.Number = 1
	fieldNodeNum      protowire.Number = 2
	fieldNodeMark     protowire.Number = 3
	fieldNodeOrig     protowire.Number = 4
	fieldNodeChildren protowire.Number = 5

	fieldRefName protowire.Number = 1
	fieldRefNum  protowire.Number = 2
)

// ErrMalformed is returned for blobs that cannot be decoded.
var ErrMalformed = errors.New("malformed summary")

// Ref identifies a node by its stable function name and slot.
type Ref struct {
	Name string
	Num  int
}

// Record is a serialized registry node.
type Record struct {
	Ref
	Mark     registry.Mark
	Orig     *Ref
	Children []Ref
}

// Fragment is the registry part read from one summary.
type Fragment struct {
	Version int
	Records []Record
}

// Write serializes every indexed node of the registry.
func Write(reg *registry.Registry) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)

	for _, n := range reg.Nodes() {
		if n.Num < 0 {
			return nil, fmt.Errorf("node %s has invalid slot", n)
		}
		rec := Record{
			Ref:  Ref{Name: n.Name, Num: n.Num},
			Mark: n.Mark,
		}
		if o := reg.Node(n.Orig); o != nil && o != n {
			rec.Orig = &Ref{Name: o.Name, Num: o.Num}
		}
		for _, c := range reg.Children(n) {
			rec.Children = append(rec.Children, Ref{Name: c.Name, Num: c.Num})
		}

		b = protowire.AppendTag(b, fieldNode, protowire.BytesType)
		b = protowire.AppendBytes(b, appendRecord(nil, rec))
	}
	return b, nil
}

func appendRecord(b []byte, rec Record) []byte {
	b = appendRef(b, rec.Ref)
	b = protowire.AppendTag(b, fieldNodeMark, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Mark))
	if rec.Orig != nil {
		b = protowire.AppendTag(b, fieldNodeOrig, protowire.BytesType)
		b = protowire.AppendBytes(b, appendRef(nil, *rec.Orig))
	}
	for _, c := range rec.Children {
		b = protowire.AppendTag(b, fieldNodeChildren, protowire.BytesType)
		b = protowire.AppendBytes(b, appendRef(nil, c))
	}
	return b
}

func appendRef(b []byte, r Ref) []byte {
	b = protowire.AppendTag(b, fieldRefName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	b = protowire.AppendTag(b, fieldRefNum, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Num))
	return b
}

// Read decodes a summary. Unknown fields are skipped.
func Read(data []byte) (*Fragment, error) {
	frag := &Fragment{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			frag.Version = int(x)
			if frag.Version > Version {
				return fmt.Errorf("unsupported summary version %d", frag.Version)
			}
		case num == fieldNode && typ == protowire.BytesType:
			rec, err := readRecord(v)
			if err != nil {
				return fmt.Errorf("read node %d: %w", len(frag.Records), err)
			}
			frag.Records = append(frag.Records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if frag.Version == 0 {
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	return frag, nil
}

func readRecord(data []byte) (Record, error) {
	var rec Record
	var hasName bool
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldRefName && typ == protowire.BytesType:
			rec.Name = string(v)
			hasName = true
		case num == fieldRefNum && typ == protowire.VarintType:
			slot, err := readSlot(x)
			if err != nil {
				return err
			}
			rec.Num = slot
		case num == fieldNodeMark && typ == protowire.VarintType:
			if x > uint64(registry.Suppressed) {
				return fmt.Errorf("%w: unknown mark %d", ErrMalformed, x)
			}
			rec.Mark = registry.Mark(x)
		case num == fieldNodeOrig && typ == protowire.BytesType:
			r, err := readRef(v)
			if err != nil {
				return fmt.Errorf("read original: %w", err)
			}
			rec.Orig = &r
		case num == fieldNodeChildren && typ == protowire.BytesType:
			r, err := readRef(v)
			if err != nil {
				return fmt.Errorf("read child: %w", err)
			}
			rec.Children = append(rec.Children, r)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if !hasName {
		return Record{}, fmt.Errorf("%w: node without a name", ErrMalformed)
	}
	return rec, nil
}

func readRef(data []byte) (Ref, error) {
	var r Ref
	var hasName bool
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldRefName && typ == protowire.BytesType:
			r.Name = string(v)
			hasName = true
		case num == fieldRefNum && typ == protowire.VarintType:
			slot, err := readSlot(x)
			if err != nil {
				return err
			}
			r.Num = slot
		}
		return nil
	})
	if err != nil {
		return Ref{}, err
	}
	if !hasName {
		return Ref{}, fmt.Errorf("%w: reference without a name", ErrMalformed)
	}
	return r, nil
}

func readSlot(x uint64) (int, error) {
	if x > cloneargs.MaxParam {
		return 0, fmt.Errorf("%w: slot %d out of range", ErrMalformed, x)
	}
	return int(x), nil
}

// walk iterates over the fields of a message. Bytes fields come in v, varints in x.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

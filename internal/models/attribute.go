package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/karta-graph/karta/internal/apperr"
)

// AttrKind discriminates the typed attribute values.
type AttrKind string

const (
	AttrString AttrKind = "string"
	AttrF32    AttrKind = "f32"
	AttrF64    AttrKind = "f64"
	AttrI64    AttrKind = "i64"
	AttrBytes  AttrKind = "bytes"
)

// AttrValue is a tagged value. Exactly the field matching Kind is meaningful.
// The JSON form is {"kind":"f32","value":0.5}; bytes are base64 strings.
type AttrValue struct {
	Kind  AttrKind
	Str   string
	F32   float32
	F64   float64
	I64   int64
	Bytes []byte
}

func StringValue(s string) AttrValue { return AttrValue{Kind: AttrString, Str: s} }
func F32Value(f float32) AttrValue   { return AttrValue{Kind: AttrF32, F32: f} }
func F64Value(f float64) AttrValue   { return AttrValue{Kind: AttrF64, F64: f} }
func I64Value(i int64) AttrValue     { return AttrValue{Kind: AttrI64, I64: i} }
func BytesValue(b []byte) AttrValue  { return AttrValue{Kind: AttrBytes, Bytes: b} }

// Equal compares kind and payload.
func (v AttrValue) Equal(o AttrValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case AttrString:
		return v.Str == o.Str
	case AttrF32:
		return v.F32 == o.F32
	case AttrF64:
		return v.F64 == o.F64
	case AttrI64:
		return v.I64 == o.I64
	case AttrBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	}
	return false
}

type attrValueJSON struct {
	Kind  AttrKind        `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON renders the tagged form.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case AttrString:
		payload = v.Str
	case AttrF32:
		payload = v.F32
	case AttrF64:
		payload = v.F64
	case AttrI64:
		payload = v.I64
	case AttrBytes:
		payload = v.Bytes // encoding/json emits base64
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(attrValueJSON{Kind: v.Kind, Value: raw})
}

// UnmarshalJSON parses the tagged form.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var aux attrValueJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := AttrValue{Kind: aux.Kind}
	var err error
	switch aux.Kind {
	case AttrString:
		err = json.Unmarshal(aux.Value, &out.Str)
	case AttrF32:
		err = json.Unmarshal(aux.Value, &out.F32)
	case AttrF64:
		err = json.Unmarshal(aux.Value, &out.F64)
	case AttrI64:
		err = json.Unmarshal(aux.Value, &out.I64)
	case AttrBytes:
		err = json.Unmarshal(aux.Value, &out.Bytes)
	default:
		return fmt.Errorf("unknown attribute kind %q", aux.Kind)
	}
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// Attribute is one named, typed entry in a node's or edge's ordered
// attribute list.
type Attribute struct {
	Name  string    `json:"name"`
	Value AttrValue `json:"value"`
}

// Reserved attribute names mirror the built-in record fields; user writes
// against them are rejected.
var reservedNodeAttrs = map[string]struct{}{
	"path": {}, "uuid": {}, "ntype": {}, "created_time": {}, "modified_time": {},
}

var reservedEdgeAttrs = map[string]struct{}{
	"etype": {}, "source": {}, "target": {},
}

// ValidateNodeAttrName rejects reserved and empty node attribute names.
func ValidateNodeAttrName(name string) error {
	if name == "" {
		return apperr.Rejectedf("attribute name is empty")
	}
	if _, ok := reservedNodeAttrs[name]; ok {
		return apperr.Rejectedf("attribute name %q is reserved", name)
	}
	return nil
}

// ValidateEdgeAttrName rejects reserved and empty edge attribute names.
func ValidateEdgeAttrName(name string) error {
	if name == "" {
		return apperr.Rejectedf("attribute name is empty")
	}
	if _, ok := reservedEdgeAttrs[name]; ok {
		return apperr.Rejectedf("attribute name %q is reserved", name)
	}
	return nil
}

// CloneAttrs deep-copies an attribute list (bytes values included) so
// snapshots cannot alias live slices.
func CloneAttrs(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a
		if a.Value.Kind == AttrBytes && a.Value.Bytes != nil {
			out[i].Value.Bytes = append([]byte(nil), a.Value.Bytes...)
		}
	}
	return out
}

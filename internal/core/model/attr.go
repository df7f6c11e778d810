package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type AttrKind int

const (
	AttrNumeric AttrKind = iota + 1
	AttrText
	AttrBoolean
)

func (k AttrKind) String() string {
	switch k {
	case AttrNumeric:
		return "numeric"
	case AttrText:
		return "text"
	case AttrBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// AttrValue holds exactly one of a number, a string or a boolean.
type AttrValue struct {
	kind AttrKind
	num  float64
	text string
	b    bool
}

func Numeric(v float64) AttrValue { return AttrValue{kind: AttrNumeric, num: v} }
func Text(s string) AttrValue     { return AttrValue{kind: AttrText, text: s} }
func Boolean(b bool) AttrValue    { return AttrValue{kind: AttrBoolean, b: b} }

func (v AttrValue) Kind() AttrKind { return v.kind }

func (v AttrValue) Num() (float64, bool) { return v.num, v.kind == AttrNumeric }
func (v AttrValue) Str() (string, bool)  { return v.text, v.kind == AttrText }
func (v AttrValue) Bool() (bool, bool)   { return v.b, v.kind == AttrBoolean }

func (v AttrValue) IsZero() bool { return v.kind == 0 }

func (v AttrValue) String() string {
	switch v.kind {
	case AttrNumeric:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case AttrText:
		return v.text
	case AttrBoolean:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Key identifies the value within its kind, e.g. for categorical grouping.
func (v AttrValue) Key() string {
	return v.kind.String() + ":" + v.String()
}

func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AttrNumeric:
		return json.Marshal(v.num)
	case AttrText:
		return json.Marshal(v.text)
	case AttrBoolean:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *AttrValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = AttrValue{}
		return nil
	}
	av, ok := AttrFromAny(raw)
	if !ok {
		return fmt.Errorf("unsupported attribute value %s", string(b))
	}
	*v = av
	return nil
}

// AttrFromAny converts a decoded JSON or SQL scalar. NaN and infinities are rejected.
func AttrFromAny(x any) (AttrValue, bool) {
	switch t := x.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return Numeric(float64(t)), true
	case int32:
		return Numeric(float64(t)), true
	case int64:
		return Numeric(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return AttrValue{}, false
		}
		return finite(f)
	case string:
		return Text(t), true
	case bool:
		return Boolean(t), true
	default:
		return AttrValue{}, false
	}
}

func finite(f float64) (AttrValue, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return AttrValue{}, false
	}
	return Numeric(f), true
}

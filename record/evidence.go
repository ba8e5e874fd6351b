package record

import (
	"encoding/json"
	"reflect"

	"github.com/zero-day-ai/verdict/indicator"
)

// Conventional keys of an evidence object.
const (
	EvidenceKeyIndicator     = "indicator"
	EvidenceKeyQuote         = "text_quote"
	EvidenceKeyJustification = "explanation"
)

// EvidenceItem is one piece of supporting evidence quoted by an analyzer.
//
// Items are opaque: whatever JSON-like value the analyzer produced is kept
// verbatim and is not checked against any vocabulary. The accessors read the
// conventional keys when the value is an object and return "" otherwise.
type EvidenceItem struct {
	value any
}

// NewEvidence builds an evidence object with the conventional keys.
func NewEvidence(tag indicator.Tag, quote, justification string) EvidenceItem {
	return EvidenceItem{value: map[string]any{
		EvidenceKeyIndicator:     string(tag),
		EvidenceKeyQuote:         quote,
		EvidenceKeyJustification: justification,
	}}
}

// EvidenceFromValue wraps an arbitrary analyzer value. The value is deep
// copied so the item never aliases caller-owned data. A value that refers to
// itself cannot be copied and yields an item holding null.
func EvidenceFromValue(v any) EvidenceItem {
	item, _ := evidenceFrom(v)
	return item
}

func evidenceFrom(v any) (EvidenceItem, bool) {
	if item, ok := v.(EvidenceItem); ok {
		v = item.value
	}
	out, ok := deepCopy(v)
	if !ok {
		return EvidenceItem{}, false
	}
	return EvidenceItem{value: out}, true
}

// Value returns a copy of the underlying value.
func (e EvidenceItem) Value() any {
	out, _ := deepCopy(e.value)
	return out
}

// Indicator returns the cited tag, if any.
func (e EvidenceItem) Indicator() string {
	return e.field(EvidenceKeyIndicator)
}

// Quote returns the quoted snippet, if any.
func (e EvidenceItem) Quote() string {
	return e.field(EvidenceKeyQuote)
}

// Justification returns the short explanation, if any.
func (e EvidenceItem) Justification() string {
	return e.field(EvidenceKeyJustification)
}

// Equal reports whether both items hold deeply equal values.
func (e EvidenceItem) Equal(other EvidenceItem) bool {
	return reflect.DeepEqual(e.value, other.value)
}

// MarshalJSON encodes the underlying value unchanged.
func (e EvidenceItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.value)
}

// UnmarshalJSON accepts any JSON value.
func (e *EvidenceItem) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.value = v
	return nil
}

func (e EvidenceItem) field(key string) string {
	obj, ok := e.value.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

// maxDepth bounds how deeply nested analyzer values are walked.
const maxDepth = 64

// deepCopy clones JSON-like containers. Scalars are returned as-is; other
// container types are copied through reflection into their JSON-like shape.
// It reports false when v refers to itself or nests deeper than maxDepth.
func deepCopy(v any) (any, bool) {
	c := copier{open: make(map[uintptr]bool), ok: true}
	out := c.copy(v, 0)
	return out, c.ok
}

type copier struct {
	open map[uintptr]bool
	ok   bool
}

func (c *copier) copy(v any, depth int) any {
	if !c.ok {
		return nil
	}
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if !c.enter(rv, depth) {
			return nil
		}
		defer c.leave(rv)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = c.copy(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		if !c.enter(rv, depth) {
			return nil
		}
		defer c.leave(rv)
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = c.copy(rv.Index(i).Interface(), depth+1)
		}
		return out
	default:
		return v
	}
}

// enter marks a container as being walked. It fails on a container that is
// already open further up, or past maxDepth.
func (c *copier) enter(rv reflect.Value, depth int) bool {
	if depth >= maxDepth {
		c.ok = false
		return false
	}
	ptr, ok := containerPointer(rv)
	if !ok {
		return true
	}
	if c.open[ptr] {
		c.ok = false
		return false
	}
	c.open[ptr] = true
	return true
}

func (c *copier) leave(rv reflect.Value) {
	if ptr, ok := containerPointer(rv); ok {
		delete(c.open, ptr)
	}
}

// containerPointer identifies maps and non-empty slices by their backing
// storage. Arrays are values and cannot refer to themselves.
func containerPointer(rv reflect.Value) (uintptr, bool) {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

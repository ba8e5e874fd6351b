package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zero-day-ai/verdict/indicator"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxReprLen bounds how much of an offending value is quoted in a rationale.
const maxReprLen = 80

// Normalizer converts untrusted analyzer output into canonical records.
// A Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	positive indicator.Vocabulary
	negative indicator.Vocabulary
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithPositiveVocabulary replaces the built-in phishing-style vocabulary.
func WithPositiveVocabulary(v indicator.Vocabulary) Option {
	return func(n *Normalizer) {
		n.positive = v
	}
}

// WithNegativeVocabulary replaces the built-in benign-style vocabulary.
func WithNegativeVocabulary(v indicator.Vocabulary) Option {
	return func(n *Normalizer) {
		n.negative = v
	}
}

// NewNormalizer creates a normalizer using the built-in vocabularies unless
// overridden by options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		positive: indicator.DefaultPositive,
		negative: indicator.DefaultNegative,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = NewNormalizer()

// Normalize normalizes raw with the built-in vocabularies.
func Normalize(raw any, role Role) Record {
	return defaultNormalizer.Normalize(raw, role)
}

// PositiveVocabulary returns the vocabulary positive indicators are filtered by.
func (n *Normalizer) PositiveVocabulary() indicator.Vocabulary {
	return n.positive
}

// NegativeVocabulary returns the vocabulary negative indicators are filtered by.
func (n *Normalizer) NegativeVocabulary() indicator.Vocabulary {
	return n.negative
}

// Normalize converts raw analyzer output into a canonical record for role.
//
// It never fails. Output that is not an object, lacks a required key, names
// an unknown verdict, or carries an unparseable confidence collapses to
// Unsure(role, reason). Confidence outside [0, 1] is clamped, unknown
// indicator tags are dropped, a non-sequence evidence value becomes empty,
// and the role claimed by raw is always replaced with role.
func (n *Normalizer) Normalize(raw any, role Role) Record {
	rec, _ := n.NormalizeChecked(raw, role)
	return rec
}

// NormalizeChecked is Normalize that also reports whether raw was discarded
// as a whole and replaced by the safe default.
func (n *Normalizer) NormalizeChecked(raw any, role Role) (rec Record, discarded bool) {
	if n == nil {
		n = defaultNormalizer
	}

	defer func() {
		if p := recover(); p != nil {
			rec = Unsure(role, fmt.Sprintf("analyzer output could not be normalized: %v", p))
			discarded = true
		}
	}()

	if !role.IsValid() {
		return Unsure(role, fmt.Sprintf("unknown analyzer role: %q", string(role))), true
	}

	obj, ok := asObject(raw)
	if !ok {
		return Unsure(role, "analyzer output is not an object"), true
	}

	if missing := missingKeys(obj); len(missing) > 0 {
		return Unsure(role, fmt.Sprintf("analyzer output missing keys: %v", missing)), true
	}

	verdict, ok := parseVerdict(obj[KeyVerdict])
	if !ok {
		return Unsure(role, fmt.Sprintf("invalid verdict: %s", repr(obj[KeyVerdict]))), true
	}

	confidence, ok := parseConfidence(obj[KeyConfidence])
	if !ok {
		return Unsure(role, fmt.Sprintf("confidence is not a number: %s", repr(obj[KeyConfidence]))), true
	}

	return Record{
		Role:               role,
		Verdict:            verdict,
		Confidence:         clamp(confidence),
		PositiveIndicators: n.positive.Filter(toStrings(obj[KeyPositiveIndicators])),
		NegativeIndicators: n.negative.Filter(toStrings(obj[KeyNegativeIndicators])),
		Evidence:           toEvidence(obj[KeyEvidence]),
		Rationale:          toText(obj[KeyRationale]),
		Notes:              toText(obj[KeyNotes]),
	}, false
}

// asObject returns raw as a string-keyed object, if it is one.
func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case Record:
		return v.Wire(), true
	case *Record:
		if v == nil {
			return nil, false
		}
		return v.Wire(), true
	case *structpb.Struct:
		if v == nil {
			return nil, false
		}
		return v.AsMap(), true
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		obj := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = iter.Value().Interface()
		}
		return obj, true
	}
	return nil, false
}

func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func missingKeys(obj map[string]any) []string {
	var missing []string
	for _, k := range RequiredKeys() {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return missing
}

func parseVerdict(v any) (Verdict, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case Verdict:
		s = string(t)
	default:
		return "", false
	}
	verdict := Verdict(s)
	return verdict, verdict.IsValid()
}

// parseConfidence accepts numbers and numeric strings. NaN is rejected;
// infinities are left for clamp.
func parseConfidence(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, ok := parseNumber(t.String())
		if !ok {
			return 0, false
		}
		f = parsed
	case string:
		parsed, ok := parseNumber(t)
		if !ok {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseNumber parses numeric text. Text too large for a float64 parses as
// the matching infinity.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func clamp(f float64) float64 {
	return math.Max(0.0, math.Min(1.0, f))
}

// toStrings accepts nil, a single scalar, or a sequence, coercing every
// element to its string form.
func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = stringify(e)
		}
		return out
	case indicator.Set:
		return t.Strings()
	case *structpb.ListValue:
		if t == nil {
			return nil
		}
		return toStrings(t.AsSlice())
	}

	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]string, rv.Len())
		for i := range out {
			out[i] = stringify(rv.Index(i).Interface())
		}
		return out
	}
	return []string{stringify(v)}
}

// toEvidence copies each element of a sequence. Elements that refer to
// themselves are dropped.
func toEvidence(v any) []EvidenceItem {
	items := []EvidenceItem{}
	add := func(e any) {
		if item, ok := evidenceFrom(e); ok {
			items = append(items, item)
		}
	}
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			add(e)
		}
		return items
	case []EvidenceItem:
		for _, e := range t {
			add(e)
		}
		return items
	}

	rv := reflect.ValueOf(v)
	if v != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			add(rv.Index(i).Interface())
		}
	}
	return items
}

func toText(v any) string {
	if v == nil {
		return ""
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case indicator.Tag:
		return string(t)
	case nil:
		return "null"
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		var b strings.Builder
		writeValue(&b, reflect.ValueOf(t), make(map[uintptr]bool), 0)
		return b.String()
	}
}

// writeValue prints v the way fmt does for JSON-like values, writing "..."
// in place of a container that refers to itself or nests past maxDepth.
func writeValue(b *strings.Builder, rv reflect.Value, open map[uintptr]bool, depth int) {
	if !rv.IsValid() {
		b.WriteString("<nil>")
		return
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			b.WriteString("<nil>")
			return
		}
		rv = rv.Elem()
	}
	if rv.CanInterface() {
		switch t := rv.Interface().(type) {
		case error:
			b.WriteString(t.Error())
			return
		case fmt.Stringer:
			b.WriteString(t.String())
			return
		}
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
	default:
		if rv.CanInterface() {
			fmt.Fprint(b, rv.Interface())
		} else {
			b.WriteString(rv.String())
		}
		return
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		fmt.Fprint(b, rv.Bytes())
		return
	}

	ptr, tracked := containerPointer(rv)
	if depth >= maxDepth || (tracked && open[ptr]) {
		b.WriteString("...")
		return
	}
	if tracked {
		open[ptr] = true
		defer delete(open, ptr)
	}

	if rv.Kind() == reflect.Map {
		entries := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			var e strings.Builder
			writeValue(&e, iter.Key(), open, depth+1)
			e.WriteByte(':')
			writeValue(&e, iter.Value(), open, depth+1)
			entries = append(entries, e.String())
		}
		slices.Sort(entries)
		b.WriteString("map[")
		b.WriteString(strings.Join(entries, " "))
		b.WriteByte(']')
		return
	}

	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeValue(b, rv.Index(i), open, depth+1)
	}
	b.WriteByte(']')
}

// repr quotes an offending value for a rationale, truncating long input.
func repr(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(truncate(t, maxReprLen))
	case nil:
		return "null"
	default:
		return truncate(stringify(t), maxReprLen)
	}
}

// truncate cuts s to at most n bytes on a rune boundary, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

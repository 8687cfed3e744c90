package types

import (
	"encoding/json"
	"math"
	"math/big"
	"sort"
	"strings"
)

// Conditions is a key/value constraint map used for version scenarios and
// policy conditions. Values compare by canonical JSON encoding, so 1 and 1.0
// are equal while "1" and 1 are not.
type Conditions map[string]any

func (c Conditions) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SatisfiedBy reports whether every key in c is present in actual with an
// equal value. An empty c is always satisfied.
func (c Conditions) SatisfiedBy(actual map[string]any) bool {
	for _, k := range c.Keys() {
		got, ok := actual[k]
		if !ok {
			return false
		}
		if !ValuesEqual(c[k], got) {
			return false
		}
	}
	return true
}

func (c Conditions) Clone() Conditions {
	if c == nil {
		return nil
	}
	out := make(Conditions, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Conditions) String() string {
	if len(c) == 0 {
		return "{}"
	}
	b, err := CanonicalJSON(map[string]any(c))
	if err != nil {
		return "{}"
	}
	return string(b)
}

func ValuesEqual(a, b any) bool {
	ab, err := CanonicalJSON(a)
	if err != nil {
		return false
	}
	bb, err := CanonicalJSON(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// CanonicalJSON encodes v with sorted object keys and normalized numbers.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := writeCanonical(&b, generic); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			ks, _ := json.Marshal(k)
			b.Write(ks)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	case []any:
		b.WriteByte('[')
		for i := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, t[i]); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case json.Number:
		b.WriteString(canonicalNumber(t))
		return nil
	default:
		bb, err := json.Marshal(t)
		if err != nil {
			return err
		}
		b.Write(bb)
		return nil
	}
}

// canonicalNumber writes integral values as exact decimal integers, so ids
// past 2^53 stay distinct; other values go through float64.
func canonicalNumber(n json.Number) string {
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f == math.Trunc(f) {
		if r, ok := new(big.Rat).SetString(n.String()); ok && r.IsInt() {
			return r.Num().String()
		}
	}
	nb, _ := json.Marshal(f)
	return string(nb)
}

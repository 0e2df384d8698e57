// Package canonical produces deterministic JSON encodings and content hashes
// for state values. The encoding sorts object keys, NFC-normalizes strings,
// and never HTML-escapes, so structurally equal values always serialize to
// identical bytes regardless of map iteration order.
//
// Arrays are encoded positionally: [1,2] and [2,1] hash differently even
// though {"a":1,"b":2} and {"b":2,"a":1} hash the same. Arrays are
// semantically ordered, objects are not.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// maxDepth bounds recursion so cyclic map/slice structures terminate with an
// error instead of overflowing the stack.
const maxDepth = 200

// Marshal encodes v as canonical JSON. Values outside the JSON tree types
// (structs, typed slices, time.Time) are routed through encoding/json first
// and then re-encoded canonically. Returns an error for values that cannot
// be represented (cycles, channels, funcs).
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalValue(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalValue(buf *bytes.Buffer, v any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("canonical: value nesting exceeds %d levels", maxDepth)
	}

	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return marshalString(buf, val)
	case json.Number:
		buf.WriteString(string(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float32:
		marshalFloat(buf, float64(val))
	case float64:
		marshalFloat(buf, val)
	case []any:
		return marshalArray(buf, val, depth)
	case map[string]any:
		return marshalObject(buf, val, depth)
	default:
		return marshalForeign(buf, v, depth)
	}
	return nil
}

// marshalFloat writes the shortest round-trip decimal form. NaN and the
// infinities have no JSON representation and collapse to null, matching
// JSON.stringify semantics for the original state trees.
func marshalFloat(buf *bytes.Buffer, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString("null")
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func marshalString(buf *bytes.Buffer, s string) error {
	s = norm.NFC.String(s)

	var enc bytes.Buffer
	encoder := json.NewEncoder(&enc)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("canonical: string encode: %w", err)
	}
	buf.Write(bytes.TrimRight(enc.Bytes(), "\n"))
	return nil
}

func marshalArray(buf *bytes.Buffer, arr []any, depth int) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalValue(buf, elem, depth+1); err != nil {
			return fmt.Errorf("canonical: array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalObject(buf *bytes.Buffer, obj map[string]any, depth int) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalValue(buf, obj[k], depth+1); err != nil {
			return fmt.Errorf("canonical: object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// marshalForeign handles values outside the JSON tree types by round-tripping
// through encoding/json into a generic tree, then re-encoding canonically.
// UseNumber preserves the original digits so the hash does not depend on
// float64 conversion artifacts.
func marshalForeign(buf *bytes.Buffer, v any, depth int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("canonical: unsupported value %T: %w", v, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return fmt.Errorf("canonical: decode %T: %w", v, err)
	}
	return marshalValue(buf, tree, depth+1)
}

package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// jsonKeys collects the JSON names declared on a struct type.
func jsonKeys(v interface{}) map[string]struct{} {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := jsonName(t.Field(i)); name != "" {
			keys[name] = struct{}{}
		}
	}
	return keys
}

func jsonName(f reflect.StructField) string {
	if f.Anonymous || !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// decodeObject decodes a JSON object into the struct dst points to, one
// member at a time. Members the struct does not declare, and declared members
// whose value does not fit the field type, come back as extras; the field is
// left zero. Only input that is not a JSON object is an error.
func decodeObject(data []byte, dst interface{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if all == nil {
		// null
		return nil, nil
	}

	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	used := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		raw, ok := all[name]
		if name == "" || !ok {
			continue
		}
		field := v.Field(i)
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		used[name] = struct{}{}
	}

	var extra map[string]json.RawMessage
	for k, raw := range all {
		if _, ok := used[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = raw
	}
	return extra, nil
}

// mergeExtras adds extra members to an encoded JSON object. Known members win.
func mergeExtras(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Members holds what a decoded array item carried beyond its typed fields:
// unknown members, and the declared members that were missing or null.
// Re-encoding an item restores both, so a persisted item goes back out the
// way it came in.
type Members struct {
	Extra map[string]json.RawMessage `json:"-"`

	// declared key -> source value; nil when the key was missing
	sparse map[string]json.RawMessage
}

func (m Members) clone() Members {
	out := Members{Extra: cloneRaw(m.Extra)}
	if m.sparse != nil {
		out.sparse = make(map[string]json.RawMessage, len(m.sparse))
		for k, v := range m.sparse {
			out.sparse[k] = v
		}
	}
	return out
}

// decodeItem decodes an array item into dst and records its Members.
func decodeItem(data []byte, dst interface{}, keys map[string]struct{}, m *Members) error {
	extra, err := decodeObject(data, dst)
	if err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var sparse map[string]json.RawMessage
	for k := range keys {
		raw, ok := all[k]
		if ok && !isNull(raw) {
			continue
		}
		if sparse == nil {
			sparse = make(map[string]json.RawMessage)
		}
		sparse[k] = raw
	}
	*m = Members{Extra: extra, sparse: sparse}
	return nil
}

// encodeItem encodes v and applies m. A declared member recorded as missing
// or null is only restored while its field still holds the zero value.
func encodeItem(v interface{}, m Members) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(m.sparse) == 0 {
		return mergeExtras(b, m.Extra)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for k, src := range m.sparse {
		if cur, ok := all[k]; ok && !isZeroJSON(cur) {
			continue
		}
		if src == nil {
			delete(all, k)
		} else {
			all[k] = src
		}
	}
	for k, raw := range m.Extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isZeroJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "0", `""`, "null", "false", "[]", "{}":
		return true
	}
	return false
}

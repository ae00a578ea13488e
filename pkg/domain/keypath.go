package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KeyPath identifies how a record's key is derived from its value. It is
// either empty (keys must be supplied out-of-line), a single dotted property
// path, or a composite list of paths that resolves to an array key.
//
// The JSON form is null, a string, or an array of strings, matching the
// snapshot document wire format.
type KeyPath struct {
	Single    string   `msgpack:"single"`
	Composite []string `msgpack:"composite"`
}

// NewKeyPath returns a single-path key path.
func NewKeyPath(path string) KeyPath {
	return KeyPath{Single: path}
}

// NewCompositeKeyPath returns a key path that resolves each listed path and
// combines the results into an array key.
func NewCompositeKeyPath(paths ...string) KeyPath {
	return KeyPath{Composite: paths}
}

// IsEmpty reports whether no key path is set.
func (kp KeyPath) IsEmpty() bool {
	return kp.Single == "" && len(kp.Composite) == 0
}

// IsComposite reports whether the key path is a list of paths.
func (kp KeyPath) IsComposite() bool {
	return len(kp.Composite) > 0
}

func (kp KeyPath) String() string {
	if kp.IsComposite() {
		return "[" + strings.Join(kp.Composite, ",") + "]"
	}
	return kp.Single
}

// Resolve derives the key for a value. A composite key path yields an array
// key with one element per path. A missing property yields (nil, false, nil);
// a value that cannot be traversed yields an error.
func (kp KeyPath) Resolve(value interface{}) (interface{}, bool, error) {
	if kp.IsEmpty() {
		return nil, false, fmt.Errorf("key path is empty")
	}
	if kp.IsComposite() {
		parts := make([]interface{}, 0, len(kp.Composite))
		for _, path := range kp.Composite {
			part, ok, err := resolvePath(value, path)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			parts = append(parts, part)
		}
		return parts, true, nil
	}
	return resolvePath(value, kp.Single)
}

// resolvePath walks a dotted property path through nested map values.
func resolvePath(value interface{}, path string) (interface{}, bool, error) {
	current := value
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false, fmt.Errorf("key path %q does not traverse an object", path)
		}
		next, exists := m[segment]
		if !exists {
			return nil, false, nil
		}
		current = next
	}
	return current, true, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Value:
		return m, true
	default:
		return nil, false
	}
}

// MarshalJSON encodes the key path as null, a string, or an array of strings.
func (kp KeyPath) MarshalJSON() ([]byte, error) {
	if kp.IsComposite() {
		return json.Marshal(kp.Composite)
	}
	if kp.Single == "" {
		return []byte("null"), nil
	}
	return json.Marshal(kp.Single)
}

// UnmarshalJSON accepts null, a string, or an array of strings.
func (kp *KeyPath) UnmarshalJSON(data []byte) error {
	*kp = KeyPath{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &kp.Composite)
	}
	return json.Unmarshal(data, &kp.Single)
}

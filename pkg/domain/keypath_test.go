package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPath_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		keyPath  KeyPath
		value    interface{}
		expected interface{}
		found    bool
		wantErr  bool
	}{
		{
			name:     "single path",
			keyPath:  NewKeyPath("id"),
			value:    map[string]interface{}{"id": 3, "name": "x"},
			expected: 3,
			found:    true,
		},
		{
			name:     "dotted path",
			keyPath:  NewKeyPath("meta.id"),
			value:    map[string]interface{}{"meta": map[string]interface{}{"id": "abc"}},
			expected: "abc",
			found:    true,
		},
		{
			name:    "missing property",
			keyPath: NewKeyPath("id"),
			value:   map[string]interface{}{"name": "x"},
			found:   false,
		},
		{
			name:     "composite path",
			keyPath:  NewCompositeKeyPath("first", "last"),
			value:    map[string]interface{}{"first": "Ada", "last": "Lovelace"},
			expected: []interface{}{"Ada", "Lovelace"},
			found:    true,
		},
		{
			name:    "composite path with missing part",
			keyPath: NewCompositeKeyPath("first", "last"),
			value:   map[string]interface{}{"first": "Ada"},
			found:   false,
		},
		{
			name:    "non-object value",
			keyPath: NewKeyPath("id"),
			value:   "not an object",
			wantErr: true,
		},
		{
			name:    "dotted path through non-object",
			keyPath: NewKeyPath("meta.id"),
			value:   map[string]interface{}{"meta": 42},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, found, err := tt.keyPath.Resolve(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expected, resolved)
			}
		})
	}
}

func TestKeyPath_ResolveDomainValue(t *testing.T) {
	kp := NewKeyPath("id")
	resolved, found, err := kp.Resolve(Value{"id": 7})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, resolved)
}

func TestKeyPath_ResolveEmpty(t *testing.T) {
	var kp KeyPath
	_, _, err := kp.Resolve(map[string]interface{}{"id": 1})
	assert.Error(t, err)
}

func TestKeyPath_JSON(t *testing.T) {
	tests := []struct {
		name     string
		keyPath  KeyPath
		expected string
	}{
		{name: "empty marshals to null", keyPath: KeyPath{}, expected: `null`},
		{name: "single marshals to string", keyPath: NewKeyPath("id"), expected: `"id"`},
		{name: "composite marshals to array", keyPath: NewCompositeKeyPath("a", "b"), expected: `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.keyPath)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))

			var decoded KeyPath
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.keyPath, decoded)
		})
	}
}

func TestKeyPath_Flags(t *testing.T) {
	assert.True(t, KeyPath{}.IsEmpty())
	assert.False(t, NewKeyPath("id").IsEmpty())
	assert.False(t, NewKeyPath("id").IsComposite())
	assert.True(t, NewCompositeKeyPath("a", "b").IsComposite())
}

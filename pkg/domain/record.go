package domain

// Value represents the structured payload of a record.
type Value map[string]interface{}

// Record pairs a primary key with its stored value. For stores with a key
// path the key is derived from the value; for out-of-line stores it is
// supplied explicitly.
type Record struct {
	Key   interface{} `json:"key" msgpack:"key"`
	Value interface{} `json:"value" msgpack:"value"`
}

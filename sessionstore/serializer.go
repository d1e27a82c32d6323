package sessionstore

import (
	"encoding/json"
)

// Serializer encodes session values for storage, and decodes them again.
type Serializer interface {
	Encode(values map[string]interface{}) (string, error)

	// Decode returns an error if data is malformed, or does not describe
	// a set of session values.
	Decode(data string) (map[string]interface{}, error)
}

// JSONSerializer encodes session values as a JSON object.
type JSONSerializer struct{}

// Encode implements the Serializer interface.
func (JSONSerializer) Encode(values map[string]interface{}) (string, error) {
	if values == nil {
		values = map[string]interface{}{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode implements the Serializer interface. A JSON null decodes to an
// empty set of values; any other JSON value that is not an object is an error.
func (JSONSerializer) Decode(data string) (map[string]interface{}, error) {
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return values, nil
}

// DecodeError is returned by a Serializer when stored session data cannot
// be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "cannot decode session data: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

package utility

import (
	"encoding/json"
)

// ParseJson splits an OCPP-J frame into its top level array elements
func ParseJson(b []byte) ([]json.RawMessage, error) {
	var array []json.RawMessage
	err := json.Unmarshal(b, &array)
	return array, err
}

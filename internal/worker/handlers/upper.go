package handlers

import (
	"encoding/json"
	"strings"
)

func init() {
	register("upper", upper)
}

func upper(payload json.RawMessage) (json.RawMessage, error) {
	s, err := decodeString(payload)
	if err != nil {
		return nil, err
	}
	return encodeString(strings.ToUpper(s)), nil
}

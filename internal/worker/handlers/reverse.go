package handlers

import "encoding/json"

func init() {
	register("reverse", reverse)
}

func reverse(payload json.RawMessage) (json.RawMessage, error) {
	s, err := decodeString(payload)
	if err != nil {
		return nil, err
	}

	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return encodeString(string(runes)), nil
}

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

func init() {
	register("hash", hash)
}

func hash(payload json.RawMessage) (json.RawMessage, error) {
	s, err := decodeString(payload)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(s))
	return encodeString(hex.EncodeToString(sum[:])), nil
}

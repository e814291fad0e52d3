package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
)

func init() {
	register("sum", sumHandler)
}

// sumHandler accepts either a JSON array of numbers or a single
// comma-separated string of numbers, mirroring the Python original's
// fallback from sum(payload) to a manual split-and-parse.
func sumHandler(payload json.RawMessage) (json.RawMessage, error) {
	var numbers []float64
	if err := json.Unmarshal(payload, &numbers); err == nil {
		return encodeSum(numbers), nil
	}

	s, err := decodeString(payload)
	if err != nil {
		return nil, errInvalidPayload{expected: "a list of numbers or a comma-separated string of numbers"}
	}

	parts := strings.Split(s, ",")
	numbers = make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errInvalidPayload{expected: "a list of numbers or a comma-separated string of numbers", cause: err}
		}
		numbers = append(numbers, n)
	}

	return encodeSum(numbers), nil
}

func encodeSum(numbers []float64) json.RawMessage {
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	out, _ := json.Marshal(total)
	return out
}

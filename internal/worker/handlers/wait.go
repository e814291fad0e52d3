package handlers

import (
	"encoding/json"
	"time"
)

func init() {
	register("wait", wait)
}

// wait sleeps for payload seconds and confirms, used for load-balancing
// and dispatch-pass demonstrations. A negative delay is rejected rather
// than treated as a no-op.
func wait(payload json.RawMessage) (json.RawMessage, error) {
	var delay float64
	if err := json.Unmarshal(payload, &delay); err != nil {
		return nil, errInvalidPayload{expected: "a number of seconds to wait", cause: err}
	}
	if delay < 0 {
		return nil, errInvalidPayload{expected: "a non-negative number of seconds"}
	}

	time.Sleep(time.Duration(delay * float64(time.Second)))
	return encodeString("Waited for " + formatSeconds(delay) + " seconds"), nil
}

func formatSeconds(delay float64) string {
	out, _ := json.Marshal(delay)
	return string(out)
}

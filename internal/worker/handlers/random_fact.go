package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

func init() {
	register("random_fact", randomFact)
}

const randomFactURL = "https://uselessfacts.jsph.pl/random.json?language=en"

var randomFactClient = &http.Client{Timeout: 5 * time.Second}

// randomFact ignores its payload and fetches a fact from a public API,
// returning a fallback string rather than failing the task when the
// API is unreachable, matching the original handler's own behavior.
func randomFact(json.RawMessage) (json.RawMessage, error) {
	resp, err := randomFactClient.Get(randomFactURL)
	if err != nil {
		return encodeString("Could not retrieve a fun fact at this time."), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return encodeString("Could not retrieve a fun fact at this time."), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return encodeString("Could not retrieve a fun fact at this time."), nil
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Text == "" {
		return encodeString("No fact found."), nil
	}

	return encodeString(parsed.Text), nil
}

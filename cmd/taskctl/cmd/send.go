package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

var sendCmd = &cobra.Command{
	Use:   "send <type> <payload>",
	Short: "Submit a single task to the dispatcher",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return sendTask(args[0], args[1])
	},
}

// sendTask submits one POST_TASK and prints the dispatcher's ack (which
// carries the assigned ID as "ID = N") or its rejection. It returns an
// error only when the request itself fails.
func sendTask(taskType, payload string) error {
	sock, err := dialDispatcher()
	if err != nil {
		return err
	}
	defer sock.Close()

	var reply protocol.Reply
	err = sock.Request(protocol.PostTask, protocol.PostTaskRequest{
		Type:    taskType,
		Payload: encodePayload(payload),
	}, &reply)
	if err != nil {
		return err
	}

	if reply.Error != "" {
		fmt.Println("Task rejected:", reply.Error)
		return nil
	}
	fmt.Println("Task submitted:", reply.Message)
	return nil
}

// encodePayload sends a bare string as a JSON string. A payload that is
// already valid JSON (a number, object, or array) is passed through
// unchanged, since handlers like sum accept a list of numbers.
func encodePayload(payload string) json.RawMessage {
	var probe interface{}
	if err := json.Unmarshal([]byte(payload), &probe); err == nil {
		return json.RawMessage(payload)
	}
	encoded, _ := json.Marshal(payload)
	return encoded
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

var resultCmd = &cobra.Command{
	Use:   "result <task_id>",
	Short: "Query the result of a previously submitted task",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		taskID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task ID %q: %w", args[0], err)
		}
		return queryResult(taskID)
	},
}

func queryResult(taskID uint64) error {
	sock, err := dialDispatcher()
	if err != nil {
		return err
	}
	defer sock.Close()

	var resp protocol.ResultResponse
	if err := sock.Request(protocol.GetResult, protocol.GetResultRequest{TaskID: taskID}, &resp); err != nil {
		return err
	}

	if resp.Error != "" {
		fmt.Printf("Task %d: %s\n", taskID, resp.Error)
		return nil
	}
	fmt.Printf("Task %d result: %s\n", taskID, resp.Result)
	return nil
}

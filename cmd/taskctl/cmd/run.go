package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive prompt for submitting tasks and querying results",
	Long:  "Reads 'send <type> <payload>' and 'result <task_id>' lines from stdin until EOF or 'exit'.",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runInteractive(os.Stdin, os.Stdout)
	},
}

func runInteractive(in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "taskctl interactive mode — send <type> <payload> | result <task_id> | exit")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "send":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: send <type> <payload>")
				continue
			}
			if err := sendTask(fields[1], fields[2]); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case "result":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: result <task_id>")
				continue
			}
			taskID, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Fprintln(out, "invalid task ID:", fields[1])
				continue
			}
			if err := queryResult(taskID); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		default:
			fmt.Fprintln(out, "unknown command:", fields[0])
		}
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

var simulateTasksFile string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the fabric through a canned list of tasks, then query every result",
	Long:  "Loads a JSON list of [type, payload] pairs, submits each one second apart, waits five seconds, then queries every result in submission order.",
	RunE: func(_ *cobra.Command, _ []string) error {
		return simulate(simulateTasksFile)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTasksFile, "tasks", "tasks.json", "path to a JSON file of [type, payload] pairs")
}

// simulatedTask is one [type, payload] pair as stored in tasks.json.
type simulatedTask struct {
	Type    string
	Payload json.RawMessage
}

func (t *simulatedTask) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	var taskType string
	if err := json.Unmarshal(pair[0], &taskType); err != nil {
		return err
	}
	t.Type = taskType
	t.Payload = pair[1]
	return nil
}

func simulate(path string) error {
	runID := uuid.NewString()
	log.WithField("run_id", runID).Info("starting simulation run")

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read tasks file %s: %w", path, err)
	}

	var tasks []simulatedTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return fmt.Errorf("failed to parse tasks file %s: %w", path, err)
	}

	var ids []uint64
	for _, task := range tasks {
		id, err := simulateSendOne(runID, task)
		if err != nil {
			fmt.Println("error submitting task:", err)
			continue
		}
		if id != nil {
			ids = append(ids, *id)
		}
		time.Sleep(1 * time.Second)
	}

	fmt.Println("\nWaiting 5 seconds for processing...")
	time.Sleep(5 * time.Second)

	for _, id := range ids {
		if err := queryResult(id); err != nil {
			fmt.Printf("error querying task %d: %v\n", id, err)
		}
	}
	return nil
}

func simulateSendOne(runID string, task simulatedTask) (*uint64, error) {
	sock, err := dialDispatcher()
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	var reply protocol.Reply
	err = sock.Request(protocol.PostTask, protocol.PostTaskRequest{
		Type:    task.Type,
		Payload: task.Payload,
	}, &reply)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"run_id": runID, "type": task.Type}).Info("simulation task submitted")
	fmt.Printf("Task %q submitted: %s\n", task.Type, reply.Message)

	return parseTaskID(reply.Message), nil
}

// parseTaskID extracts the numeric ID from an acknowledgement message
// of the form "Task received, ID = 42" by splitting on "=" rather than
// reading a dedicated ID field, since the dispatcher's ack carries the
// ID only inside its human-readable message text.
func parseTaskID(message string) *uint64 {
	parts := strings.Split(message, "=")
	if len(parts) < 2 {
		return nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(parts[len(parts)-1]), 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// Command taskctl is the operator-facing CLI for submitting tasks to
// the fabric and querying their results.
package main

import (
	"github.com/geoffjay/taskfabricd/cmd/taskctl/cmd"
)

func main() {
	cmd.Execute()
}

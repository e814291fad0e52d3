package dispatcher

import "time"

// lookupWorkerRetriesOverrideForTest collapses the lookup retry budget
// down to something a unit test can afford to wait out, without
// changing the production defaults.
func (d *Dispatcher) lookupWorkerRetriesOverrideForTest() {
	d.lookupRetries = 2
	d.lookupTimeout = 50 * time.Millisecond
	d.lookupWait = 10 * time.Millisecond
}

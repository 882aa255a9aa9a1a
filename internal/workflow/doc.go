// Package workflow orchestrates the dubbing pipeline. A manager owns three
// kinds of goroutines over the queue store: an intake loop that extracts and
// chunks pending jobs, a worker pool that claims per-segment translate and
// synthesize stages, and a merge loop that assembles finished jobs.
//
// All coordination happens through SQLite. Workers race for claims with
// compare-and-set updates, so any number of workers can run safely and a
// crashed daemon resumes by resetting stale claims at startup.
package workflow

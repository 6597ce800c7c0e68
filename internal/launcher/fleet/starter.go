// Package fleet abstracts the substrate that runs load-test workers. The
// launcher only needs fire-and-forget starts; whatever runs the worker
// (a local process, a container task) is behind the WorkerStarter interface.
package fleet

import "context"

// WorkerSpec is everything one worker needs: its injected identity and run
// parameters. Workers share no state and receive no further communication
// after start; in particular there is no way to stop a running worker early.
type WorkerSpec struct {
	RunId              string
	WorkerIndex        int
	TargetUrl          string
	VirtualUsers       int
	RequestRatePerUser float64
	DurationSeconds    int
	// Queue the worker publishes results to
	QueueAddress string
	QueueName    string
}

type WorkerStarter interface {
	// Start launches one worker and returns as soon as the start is
	// confirmed. It never waits for the worker to finish. Starting the same
	// (RunId, WorkerIndex) twice is allowed; results are keyed so duplicate
	// workers only produce overlapping rows.
	Start(ctx context.Context, spec WorkerSpec) error
}

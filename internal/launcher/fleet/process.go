package fleet

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ProcessStarter runs each worker as a local child process of the launcher.
type ProcessStarter struct {
	// Path to the worker binary
	BinaryPath string
}

func NewProcessStarter(binaryPath string) *ProcessStarter {
	return &ProcessStarter{BinaryPath: binaryPath}
}

func (s *ProcessStarter) Start(_ context.Context, spec WorkerSpec) error {
	args := []string{
		"--run-id", spec.RunId,
		"--worker-index", fmt.Sprintf("%d", spec.WorkerIndex),
		"--target-url", spec.TargetUrl,
		"--virtual-users", fmt.Sprintf("%d", spec.VirtualUsers),
		"--request-rate", fmt.Sprintf("%f", spec.RequestRatePerUser),
		"--duration-seconds", fmt.Sprintf("%d", spec.DurationSeconds),
		"--queue-address", spec.QueueAddress,
		"--queue-name", spec.QueueName,
	}
	cmd := exec.Command(s.BinaryPath, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "could not start worker %d of run %s", spec.WorkerIndex, spec.RunId)
	}
	log.Infof("Started worker %d of run %s (pid %d)", spec.WorkerIndex, spec.RunId, cmd.Process.Pid)

	// Reap the child when it exits; nothing in the pipeline consumes worker
	// completion, a worker that dies mid-run simply stops emitting.
	go func() {
		if err := cmd.Wait(); err != nil {
			log.WithError(err).Warnf("Worker %d of run %s exited with error", spec.WorkerIndex, spec.RunId)
		}
	}()
	return nil
}

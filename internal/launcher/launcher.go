// Package launcher turns one launch request into a fleet of independently
// running workers. Launch is fire-and-forget: once workers are started the
// launcher neither tracks them nor offers a way to stop them; results flow
// back asynchronously through the queue.
package launcher

import (
	"context"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/common/surgeerrors"
	"github.com/surgeworks/surge/internal/launcher/configuration"
	"github.com/surgeworks/surge/internal/launcher/fleet"
	"github.com/surgeworks/surge/pkg/api"
)

type Launcher struct {
	starter fleet.WorkerStarter
	config  configuration.LauncherConfiguration
}

func NewLauncher(starter fleet.WorkerStarter, config configuration.LauncherConfiguration) *Launcher {
	return &Launcher{
		starter: starter,
		config:  config,
	}
}

// Launch validates the request, generates a run id and starts
// request.WorkerCount workers. Validation happens before any worker starts,
// so an invalid request has no side effects at all. Started workers are
// never rolled back: if some indices fail to start past their retry budget,
// an ErrPartialLaunchFailure names them and the rest keep running.
func (l *Launcher) Launch(ctx context.Context, request *api.LaunchRequest) (string, error) {
	if err := request.Validate(); err != nil {
		return "", errors.WithStack(&surgeerrors.ErrInvalidRequest{Message: err.Error()})
	}
	runId := uuid.NewString()
	log.Infof("Launching run %s: %d workers against %s (%d users at %.2f req/s each for %ds)",
		runId, request.WorkerCount, request.TargetUrl, request.VirtualUsers, request.RequestRatePerUser, request.DurationSeconds)

	indices := make([]int, request.WorkerCount)
	for i := range indices {
		indices[i] = i
	}
	return runId, l.LaunchIndices(ctx, runId, request, indices)
}

// LaunchIndices starts workers for just the given indices of a run. It is
// the reconciliation path after a partial launch failure: per-index starts
// are idempotent, so re-invoking for failed indices is always safe.
func (l *Launcher) LaunchIndices(ctx context.Context, runId string, request *api.LaunchRequest, indices []int) error {
	if err := request.Validate(); err != nil {
		return errors.WithStack(&surgeerrors.ErrInvalidRequest{Message: err.Error()})
	}

	var failed []int
	var reasons *multierror.Error
	for _, index := range indices {
		spec := fleet.WorkerSpec{
			RunId:              runId,
			WorkerIndex:        index,
			TargetUrl:          request.TargetUrl,
			VirtualUsers:       request.VirtualUsers,
			RequestRatePerUser: request.RequestRatePerUser,
			DurationSeconds:    request.DurationSeconds,
			QueueAddress:       l.config.Queue.Redis.Addrs[0],
			QueueName:          l.config.Queue.Name,
		}
		err := retry.Do(
			func() error { return l.starter.Start(ctx, spec) },
			retry.Attempts(l.config.Worker.StartAttempts),
			retry.Delay(l.config.Worker.StartRetryDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			Get().RecordWorkerStartFailure()
			log.WithError(err).Errorf("Could not start worker %d of run %s after %d attempts", index, runId, l.config.Worker.StartAttempts)
			failed = append(failed, index)
			reasons = multierror.Append(reasons, errors.Wrapf(err, "worker %d", index))
			continue
		}
		Get().RecordWorkerStarted()
	}

	Get().RecordLaunch()
	if len(failed) > 0 {
		return errors.WithStack(&surgeerrors.ErrPartialLaunchFailure{
			RunId:         runId,
			FailedIndices: failed,
			Reasons:       reasons,
		})
	}
	return nil
}

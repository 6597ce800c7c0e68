// Package worker implements the reference load-generation worker. It drives
// the target at a fixed aggregate rate for a fixed duration and emits one
// result record per request to the queue, then terminates. There is no
// completion signal: the pipeline only ever sees a stream of records per run.
package worker

import (
	"context"
	"math"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/surgeworks/surge/pkg/api"
	"github.com/surgeworks/surge/pkg/client"
)

type Config struct {
	RunId              string
	WorkerIndex        int
	TargetUrl          string
	VirtualUsers       int
	RequestRatePerUser float64
	Duration           time.Duration
}

// Run executes the load test described by config and publishes a result
// record per issued request. Publish failures drop the affected record only;
// the attack itself continues.
func Run(ctx context.Context, config Config, publisher *client.Publisher) error {
	log.Infof("Worker %d of run %s attacking %s for %s", config.WorkerIndex, config.RunId, config.TargetUrl, config.Duration)

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodGet,
		URL:    config.TargetUrl,
	})
	attacker := vegeta.NewAttacker(
		vegeta.Workers(uint64(config.VirtualUsers)),
	)

	published := 0
	dropped := 0
	results := attacker.Attack(targeter, attackRate(config), config.Duration, config.RunId)
	for result := range results {
		record := &api.ResultRecord{
			TestId:         config.RunId,
			Timestamp:      result.Timestamp.UnixMilli(),
			Status:         recordStatus(result),
			ResponseTimeMs: float64(result.Latency) / float64(time.Millisecond),
			WorkerIndex:    config.WorkerIndex,
		}
		if err := publisher.Publish(ctx, record); err != nil {
			dropped++
			continue
		}
		published++
	}

	log.Infof("Worker %d of run %s finished: %d records published, %d dropped", config.WorkerIndex, config.RunId, published, dropped)
	return nil
}

// attackRate converts per-user rate and user count into an aggregate pace.
// Rates below one request per second stretch the period instead of rounding
// the frequency to zero.
func attackRate(config Config) vegeta.Rate {
	total := config.RequestRatePerUser * float64(config.VirtualUsers)
	if total >= 1 {
		return vegeta.Rate{Freq: int(math.Round(total)), Per: time.Second}
	}
	return vegeta.Rate{Freq: 1, Per: time.Duration(float64(time.Second) / total)}
}

func recordStatus(result *vegeta.Result) api.Status {
	if result.Error == "" && result.Code >= 200 && result.Code < 400 {
		return api.StatusSuccess
	}
	return api.StatusFailure
}

package main

import (
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/surgeworks/surge/internal/common"
	"github.com/surgeworks/surge/internal/common/app"
	"github.com/surgeworks/surge/internal/common/configuration"
	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/internal/worker"
	"github.com/surgeworks/surge/pkg/client"
)

// Workers are parameterized entirely by their injected identity and run
// parameters; they read no config files and share no state with each other.
var (
	runId           = pflag.String("run-id", "", "Run identifier shared by all workers of one launch")
	workerIndex     = pflag.Int("worker-index", 0, "Index of this worker within the run")
	targetUrl       = pflag.String("target-url", "", "URL to load test")
	virtualUsers    = pflag.Int("virtual-users", 1, "Number of concurrent virtual users")
	requestRate     = pflag.Float64("request-rate", 1, "Requests per second per virtual user")
	durationSeconds = pflag.Int("duration-seconds", 60, "Test duration in seconds")
	queueAddress    = pflag.String("queue-address", "localhost:6379", "Redis address(es) of the result queue, comma separated")
	queueName       = pflag.String("queue-name", "results", "Name of the result queue")
)

func main() {
	pflag.Parse()
	common.ConfigureLogging()

	if *runId == "" || *targetUrl == "" {
		log.Fatal("--run-id and --target-url are required")
	}

	db := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: strings.Split(*queueAddress, ","),
	})
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("failed to close queue redis client")
		}
	}()

	resultQueue := queue.NewRedisQueue(db, configuration.QueueConfig{
		Name:      *queueName,
		Retention: 4 * 24 * time.Hour,
	})

	ctx := app.CreateContextWithShutdown()
	err := worker.Run(ctx, worker.Config{
		RunId:              *runId,
		WorkerIndex:        *workerIndex,
		TargetUrl:          *targetUrl,
		VirtualUsers:       *virtualUsers,
		RequestRatePerUser: *requestRate,
		Duration:           time.Duration(*durationSeconds) * time.Second,
	}, client.NewPublisher(resultQueue))
	if err != nil {
		log.Fatal(err)
	}
}

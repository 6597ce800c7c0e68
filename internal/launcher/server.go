package launcher

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/surgeworks/surge/internal/common/surgeerrors"
	"github.com/surgeworks/surge/pkg/api"
)

// NewRouter exposes the launcher over HTTP. The launch call returns as soon
// as workers are started; results are never returned synchronously.
func NewRouter(launcher *Launcher) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/api/v1/launch", launchHandler(launcher))
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func launchHandler(launcher *Launcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request api.LaunchRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, api.LaunchResponse{Error: err.Error()})
			return
		}

		runId, err := launcher.Launch(c.Request.Context(), &request)
		if err == nil {
			c.JSON(http.StatusOK, api.LaunchResponse{
				RunId:         runId,
				TasksLaunched: request.WorkerCount,
			})
			return
		}

		var invalid *surgeerrors.ErrInvalidRequest
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, api.LaunchResponse{Error: invalid.Error()})
			return
		}

		var partial *surgeerrors.ErrPartialLaunchFailure
		if errors.As(err, &partial) {
			c.JSON(http.StatusInternalServerError, api.LaunchResponse{
				RunId:         runId,
				TasksLaunched: request.WorkerCount - len(partial.FailedIndices),
				FailedIndices: partial.FailedIndices,
				Error:         partial.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, api.LaunchResponse{Error: err.Error()})
	}
}

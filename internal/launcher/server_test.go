package launcher

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgeworks/surge/pkg/api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func postLaunch(t *testing.T, router *gin.Engine, body interface{}) (*httptest.ResponseRecorder, api.LaunchResponse) {
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	request := httptest.NewRequest(http.MethodPost, "/api/v1/launch", bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	var response api.LaunchResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return recorder, response
}

func TestLaunchEndpointReturnsRunId(t *testing.T) {
	starter := newFakeStarter()
	router := NewRouter(NewLauncher(starter, testConfig()))

	recorder, response := postLaunch(t, router, validRequest())
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, response.RunId)
	assert.Equal(t, 3, response.TasksLaunched)
	assert.Empty(t, response.FailedIndices)
	assert.Len(t, starter.started, 3)
}

func TestLaunchEndpointRejectsInvalidRequest(t *testing.T) {
	starter := newFakeStarter()
	router := NewRouter(NewLauncher(starter, testConfig()))

	recorder, response := postLaunch(t, router, &api.LaunchRequest{TargetUrl: "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NotEmpty(t, response.Error)
	assert.Empty(t, starter.started)
}

func TestLaunchEndpointReportsPartialFailure(t *testing.T) {
	starter := newFakeStarter()
	starter.failures[2] = 100
	router := NewRouter(NewLauncher(starter, testConfig()))

	recorder, response := postLaunch(t, router, validRequest())
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotEmpty(t, response.RunId)
	assert.Equal(t, 2, response.TasksLaunched)
	assert.Equal(t, []int{2}, response.FailedIndices)
}

func TestHealthz(t *testing.T) {
	router := NewRouter(NewLauncher(newFakeStarter(), testConfig()))
	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

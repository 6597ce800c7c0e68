package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchRequestValidation(t *testing.T) {
	valid := LaunchRequest{
		TargetUrl:          "https://example.com",
		WorkerCount:        2,
		VirtualUsers:       50,
		RequestRatePerUser: 5,
		DurationSeconds:    60,
	}
	assert.NoError(t, valid.Validate())

	tests := map[string]func(r *LaunchRequest){
		"missing target":    func(r *LaunchRequest) { r.TargetUrl = "" },
		"bad target":        func(r *LaunchRequest) { r.TargetUrl = "not a url" },
		"zero workers":      func(r *LaunchRequest) { r.WorkerCount = 0 },
		"zero users":        func(r *LaunchRequest) { r.VirtualUsers = 0 },
		"zero rate":         func(r *LaunchRequest) { r.RequestRatePerUser = 0 },
		"negative rate":     func(r *LaunchRequest) { r.RequestRatePerUser = -1 },
		"zero duration":     func(r *LaunchRequest) { r.DurationSeconds = 0 },
		"negative duration": func(r *LaunchRequest) { r.DurationSeconds = -10 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			request := valid
			mutate(&request)
			assert.Error(t, request.Validate())
		})
	}
}

func TestResultRecordRoundTripsThroughWireFormat(t *testing.T) {
	record := &ResultRecord{
		TestId:         "run-1",
		Timestamp:      1700000000123,
		Status:         StatusFailure,
		ResponseTimeMs: 52.25,
		WorkerIndex:    3,
	}
	payload, err := record.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalResultRecord(payload)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestUnmarshalResultRecordRejectsBadShapes(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":        `]][[`,
		"empty object":    `{}`,
		"no timestamp":    `{"testId":"run-1","status":"success","responseTimeMs":1,"workerIndex":0}`,
		"unknown status":  `{"testId":"run-1","timestamp":1,"status":"maybe","responseTimeMs":1,"workerIndex":0}`,
		"negative index":  `{"testId":"run-1","timestamp":1,"status":"success","responseTimeMs":1,"workerIndex":-1}`,
		"negative timing": `{"testId":"run-1","timestamp":1,"status":"success","responseTimeMs":-0.5,"workerIndex":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalResultRecord([]byte(payload))
			assert.Error(t, err)
		})
	}
}

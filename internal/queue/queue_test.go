package queue

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestEncodeDecodeJobRoundTrip(t *testing.T) {
	in := Job{
		ID:            "job-1",
		ApplicationID: 42,
		JobPostingID:  7,
		ScreeningID:   99,
		Priority:      8,
		Force:         true,
		Attempt:       2,
		ResumePath:    "./uploads/cv/42.pdf",
		EnqueuedAtMs:  1700000000000,
	}

	out, ok := decodeJob(redis.XMessage{ID: "1-0", Values: stringify(encodeJob(in))})
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestDecodeJobRejectsMissingApplication(t *testing.T) {
	_, ok := decodeJob(redis.XMessage{Values: map[string]interface{}{"priority": "3"}})
	assert.False(t, ok)
}

func TestDecodeJobDefaultsAttempt(t *testing.T) {
	job, ok := decodeJob(redis.XMessage{Values: map[string]interface{}{
		"application_id": "5",
	}})
	require.True(t, ok)
	assert.Equal(t, 1, job.Attempt)
}

func TestBackoffDelayDoubles(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, backoffDelay(base, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(base, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(base, 3))
}

func TestConfigDefaults(t *testing.T) {
	q := New(nil, Config{Name: "test"}, nil, nil, testLogger())
	assert.Equal(t, 1, q.cfg.Concurrency)
	assert.Equal(t, 3, q.cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, q.cfg.BaseBackoff)
	assert.Equal(t, "test:high", q.highStream)
	assert.Equal(t, "test:norm", q.normStream)
}

// Redis hands values back as strings; mimic that for round-tripping.
func stringify(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v.(string)
	}
	return out
}

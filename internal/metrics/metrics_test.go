package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.DateFinished("delivered")
	r.DateFinished("delivered")
	r.DateFinished("not_found")
	r.Downloaded(1024, 2)
	r.Downloaded(0, 1)
	r.StagesFinished([]string{"aspect"}, []string{"chapters"})
	r.TimestampsDetected("")
	r.TimestampsDetected("primary")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.dates.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dates.WithLabelValues("not_found")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(r.downloadBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.attempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stages.WithLabelValues("chapters", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.timestamps.WithLabelValues("none")))
}

func TestRunFinished(t *testing.T) {
	r := New()
	started := time.Unix(1_700_000_000, 0)
	r.RunFinished(started, started.Add(90*time.Second), true)

	assert.Equal(t, 90.0, testutil.ToFloat64(r.runDuration))
	assert.Equal(t, float64(started.Add(90*time.Second).Unix()), testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccessRun))

	r.RunFinished(started, started.Add(time.Minute), false)
	assert.Equal(t, float64(started.Add(time.Minute).Unix()), testutil.ToFloat64(r.lastSuccessRun))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.DateFinished("delivered")
	path := filepath.Join(t.TempDir(), "kctvfetch.prom")

	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kctvfetch_dates_total{status="delivered"} 1`)

	require.NoError(t, r.WriteTextfile(""))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.DateFinished("delivered")
	r.Downloaded(1, 1)
	r.StagesFinished([]string{"a"}, nil)
	r.TimestampsDetected("primary")
	r.RunFinished(time.Now(), time.Now(), false)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("/nonexistent/x.prom"))
}

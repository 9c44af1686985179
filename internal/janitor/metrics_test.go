package janitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bestiary-server/internal/messaging"
)

type pushRecorder struct {
	mu       sync.Mutex
	requests []string
}

func (p *pushRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.Method+" "+r.URL.Path)
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *pushRecorder) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

func TestMetrics_RecordOrphanResult(t *testing.T) {
	m := NewMetrics("", zap.NewNop())

	m.RecordOrphanResult(messaging.ResultDeleted, 20*time.Millisecond)
	m.RecordOrphanResult(messaging.ResultDeleted, 30*time.Millisecond)
	m.RecordOrphanResult(messaging.ResultFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.processed.WithLabelValues(messaging.ResultDeleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processed.WithLabelValues(messaging.ResultFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.processed.WithLabelValues(messaging.ResultMalformed)))

	// Без Pushgateway отправка ничего не делает
	assert.NoError(t, m.Push())
}

func TestMetrics_PushAndCleanup(t *testing.T) {
	recorder := &pushRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	m := NewMetrics(server.URL, zap.NewNop())
	m.RecordOrphanResult(messaging.ResultDeleted, time.Millisecond)

	require.NoError(t, m.Push())
	m.Cleanup()

	requests := recorder.snapshot()
	require.Len(t, requests, 2)
	assert.True(t, strings.HasPrefix(requests[0], http.MethodPut+" /metrics/job/"+jobName+"/instance/"), requests[0])
	assert.True(t, strings.HasPrefix(requests[1], http.MethodDelete+" /metrics/job/"+jobName), requests[1])
}

func TestMetrics_RunPushesOnShutdown(t *testing.T) {
	recorder := &pushRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	m := NewMetrics(server.URL, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, m.Run(ctx, time.Hour))
	assert.Len(t, recorder.snapshot(), 1)
}

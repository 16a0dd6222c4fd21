package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(config.MetricsConfig{Namespace: "ganymede"}, prometheus.NewRegistry())
}

func TestCollector_RequestLifecycle(t *testing.T) {
	c := newTestCollector(t)

	c.RequestStarted()
	c.RequestStarted()
	c.RequestFinished("gpt-4o", "success")
	c.RequestFinished("gpt-4o", "failed")
	c.RequestRejected("bad-model")
	c.SetCredentialCount("active", 3)
	c.RecordReclaimed(10, 2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`ganymede_requests_total{model="gpt-4o",status="success"} 1`,
		`ganymede_requests_total{model="gpt-4o",status="failed"} 1`,
		`ganymede_requests_total{model="bad-model",status="rejected"} 1`,
		`ganymede_active_requests 0`,
		`ganymede_credentials{status="active"} 3`,
		`ganymede_reclaimed_total{kind="logs"} 10`,
		`ganymede_reclaimed_total{kind="credentials"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q\n%s", want, body)
		}
	}
}

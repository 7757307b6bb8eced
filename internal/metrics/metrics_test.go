package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ledgerlink/internal/metrics"
)

func TestCollectors_CountAndServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	c.HandshakeStarted("initiator")
	c.HandshakeCompleted("initiator", 20*time.Millisecond)
	c.HandshakeFailed("responder", "no_common_mode")
	c.Sent()
	c.Undelivered(2)

	if got := testutil.ToFloat64(c.HandshakesFailed.WithLabelValues("responder", "no_common_mode")); got != 1 {
		t.Fatalf("failed_total = %v", got)
	}
	if got := testutil.ToFloat64(c.Undeliverable); got != 2 {
		t.Fatalf("undeliverable_total = %v", got)
	}

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ledgerlink_handshake_started_total") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *metrics.Collectors
	c.HandshakeStarted("initiator")
	c.Sent()
	c.Undelivered(1)
}

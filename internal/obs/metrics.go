package obs

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Security-relevant counters emitted by the authorization core.
var (
	AccessDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_access_denials_total",
			Help: "Tenant isolation and RBAC denials.",
		},
		[]string{"reason"},
	)

	TokenRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_token_rotations_total",
		Help: "Successful refresh token rotations.",
	})

	TokenReuseDetections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_token_reuse_detections_total",
		Help: "Refresh tokens presented again after rotation.",
	})

	FilteredRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_cross_tenant_rows_filtered_total",
		Help: "Rows dropped by tenant collection filtering.",
	})
)

var initOnce sync.Once

// Init registers the counters with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(AccessDenials, TokenRotations, TokenReuseDetections, FilteredRows)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

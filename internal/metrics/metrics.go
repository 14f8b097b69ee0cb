package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all opsdesk metrics
const namespace = "opsdesk"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo exposes application version information as labels (always set to 1)
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit"},
)

// RealtimeConnections tracks the number of live websocket connections
var RealtimeConnections = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Number of currently registered realtime connections",
	},
)

// RealtimeEventsTotal counts published realtime events by target group
var RealtimeEventsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Realtime events published, labelled by target group",
	},
	[]string{"target"},
)

// RealtimeEventsDropped counts events dropped because a connection's send
// buffer was full or the target was absent. Drops are expected under the
// best-effort delivery contract.
var RealtimeEventsDropped = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_dropped_total",
		Help:      "Realtime events dropped due to absent targets or full send buffers",
	},
)

// AuditAppendsTotal counts audit log appends by outcome. The "error" series
// is the observable surface of the documented audit inconsistency window:
// a non-zero value means mutations exist with no matching audit record.
var AuditAppendsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_appends_total",
		Help:      "Audit record appends by outcome (ok, error)",
	},
	[]string{"status"},
)

// Init registers runtime collectors and sets version info.
func Init(version, commit string) {
	AppInfo.WithLabelValues(version, commit).Set(1)

	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

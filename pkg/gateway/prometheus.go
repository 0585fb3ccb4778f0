package gateway

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	endpointCounter = map[string]prometheus.Counter{}
	endpointTimes   = map[string]prometheus.Histogram{}
)

func addReqTimeMetric(name string, t time.Duration) {
	hist, ok := endpointTimes[name]
	if ok {
		hist.Observe(t.Seconds())
	}
	ctr, ok := endpointCounter[name]
	if ok {
		ctr.Inc()
	}
}

func regCounter(endpoint string) {
	ctr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      fmt.Sprintf("Number of calls to the %s endpoint", endpoint),
			Name:      fmt.Sprintf("%s_called", endpoint),
			Namespace: "ethgateway",
		},
	)
	prometheus.MustRegister(ctr)
	endpointCounter[endpoint] = ctr
	endpointTimes[endpoint] = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Gateway " + endpoint + " request handling time",
			Name:      endpoint + "_time",
			Namespace: "ethgateway",
		},
	)
	prometheus.MustRegister(endpointTimes[endpoint])
}

func init() {
	for _, endpoint := range []string{
		"balance",
		"tx_skeleton",
		"tx_submit",
		"tx_get",
		"notifications_register",
		"notifications_deregister",
		"pn_register",
		"pn_deregister",
	} {
		regCounter(endpoint)
	}
}

package hue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "huerest_exchanges_total",
	Help: "Bridge exchanges by verb and outcome (success, bridge_error, transport_failure)",
}, []string{"verb", "outcome"})

func observeExchange(verb string, kind outcomeKind) {
	exchangesTotal.WithLabelValues(verb, kind.String()).Inc()
}

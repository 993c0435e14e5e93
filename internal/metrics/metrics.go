package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PricingComputations counts completed pricing computations, labelled by
// mode ("computed" or "manual").
var PricingComputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pricer_pricing_computations_total",
	Help: "Completed pricing computations.",
}, []string{"mode"})

// LossyConversions counts currency conversions that fell back to identity
// because the exchange-rate table had no entry for the currency.
var LossyConversions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pricer_lossy_conversions_total",
	Help: "Currency conversions degraded to identity due to a missing rate.",
})

package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darasa",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests, by route, method and status code.",
	}, []string{"route", "method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darasa",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies, by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// metricsMiddleware records every request against its route pattern, not its raw path.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err) // commits the response status
		}

		route := ctx.Path()
		method := ctx.Request().Method
		requestsTotal.WithLabelValues(route, method, strconv.Itoa(ctx.Response().Status)).Inc()
		requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		return nil
	}
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

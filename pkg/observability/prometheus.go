// Package observability provides Prometheus metrics and the metrics server
package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//nolint:gochecknoglobals // Singleton pattern for metrics server
var (
	metricsServerInstance *http.Server
	once                  sync.Once
)

// StartMetricsServer starts a Prometheus metrics server if it hasn't been started already.
func StartMetricsServer(addr string, log logrus.FieldLogger) {
	once.Do(func() {
		if metricsServerInstance != nil {
			return
		}

		sm := http.NewServeMux()
		sm.Handle("/metrics", promhttp.Handler())

		metricsServerInstance = &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			Handler:           sm,
		}

		go func() {
			log.WithField("addr", addr).Info("Starting metrics server")

			if err := metricsServerInstance.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	})
}

// StopMetricsServer shuts down the metrics server if it was started
func StopMetricsServer(ctx context.Context) error {
	if metricsServerInstance == nil {
		return nil
	}

	return metricsServerInstance.Shutdown(ctx)
}

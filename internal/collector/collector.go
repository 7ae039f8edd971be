// Package collector exports pair state as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hoveln/framesync/internal/controller"
	"github.com/hoveln/framesync/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pairHealth = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "healthy"),
		"1 if the pair's health is ok",
		[]string{"pair"},
		nil,
	)
	pairBreakerOpen = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "breaker_open"),
		"1 if the pair's circuit breaker is open",
		[]string{"pair"},
		nil,
	)
	pairOverrideActive = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "override_active"),
		"1 if a manual override window is active",
		[]string{"pair"},
		nil,
	)
	pairSourceActive = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "source_active"),
		"1 if the media source is active",
		[]string{"pair"},
		nil,
	)
	pairSourceConnected = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "source_connected"),
		"1 if the source push feed is connected",
		[]string{"pair"},
		nil,
	)
	pairMode = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "mode"),
		"Desired and actual display mode. Always one. See labels 'desired' and 'actual'",
		[]string{"pair", "desired", "actual"},
		nil,
	)
	pairCommandsInWindow = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "commands_in_window"),
		"Number of commands in the 5-minute sliding window",
		[]string{"pair"},
		nil,
	)
	pairConnectFailures = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "connect_failures_total"),
		"Total number of device connect/probe failures",
		[]string{"pair"},
		nil,
	)
	pairCommandFailures = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "command_failures_total"),
		"Total number of failed mode commands",
		[]string{"pair"},
		nil,
	)
	pairVerifyFailures = prometheus.NewDesc(
		prometheus.BuildFQName("framesync", "pair", "verify_failures_total"),
		"Total number of mode verification timeouts",
		[]string{"pair"},
		nil,
	)
)

// Collector subscribes to status snapshots and exposes the latest one per
// pair.
type Collector struct {
	publisher *pubsub.Publisher[controller.Status]
	logger    *slog.Logger

	lock     sync.RWMutex
	statuses map[string]controller.Status
}

var _ prometheus.Collector = &Collector{}

func New(publisher *pubsub.Publisher[controller.Status], logger *slog.Logger) *Collector {
	return &Collector{
		publisher: publisher,
		logger:    logger,
		statuses:  make(map[string]controller.Status),
	}
}

// Run collects status snapshots until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Debug("started")
	defer c.logger.Debug("stopped")

	ch := c.publisher.Subscribe()
	defer c.publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-ch:
			c.lock.Lock()
			c.statuses[status.Name] = status
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pairHealth
	ch <- pairBreakerOpen
	ch <- pairOverrideActive
	ch <- pairSourceActive
	ch <- pairSourceConnected
	ch <- pairMode
	ch <- pairCommandsInWindow
	ch <- pairConnectFailures
	ch <- pairCommandFailures
	ch <- pairVerifyFailures
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for name, s := range c.statuses {
		ch <- prometheus.MustNewConstMetric(pairHealth, prometheus.GaugeValue, boolToFloat(s.Health == "ok"), name)
		ch <- prometheus.MustNewConstMetric(pairBreakerOpen, prometheus.GaugeValue, boolToFloat(!s.BreakerUntil.IsZero()), name)
		ch <- prometheus.MustNewConstMetric(pairOverrideActive, prometheus.GaugeValue, boolToFloat(!s.OverrideUntil.IsZero()), name)
		ch <- prometheus.MustNewConstMetric(pairSourceActive, prometheus.GaugeValue, boolToFloat(s.SourceActive), name)
		ch <- prometheus.MustNewConstMetric(pairSourceConnected, prometheus.GaugeValue, boolToFloat(s.SourceConnected), name)
		ch <- prometheus.MustNewConstMetric(pairMode, prometheus.GaugeValue, 1, name, s.DesiredMode, s.ActualMode)
		ch <- prometheus.MustNewConstMetric(pairCommandsInWindow, prometheus.GaugeValue, float64(s.CommandsInWindow), name)
		ch <- prometheus.MustNewConstMetric(pairConnectFailures, prometheus.CounterValue, float64(s.ConnectFailures), name)
		ch <- prometheus.MustNewConstMetric(pairCommandFailures, prometheus.CounterValue, float64(s.CommandFailures), name)
		ch <- prometheus.MustNewConstMetric(pairVerifyFailures, prometheus.CounterValue, float64(s.VerifyFailures), name)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

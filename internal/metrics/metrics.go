// Package metrics exposes scan activity and store totals to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/pkg/logger"
)

// Collector records scan activity. A nil *Collector is a no-op.
type Collector struct {
	scans          *prometheus.CounterVec
	newChannels    prometheus.Counter
	storedMessages prometheus.Counter
	fetchErrors    prometheus.Counter
	passDuration   prometheus.Histogram
}

// New creates the scan metrics and registers them with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_keyword_scans_total",
			Help: "Keyword scans by terminal status",
		}, []string{"status"}),
		newChannels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_channels_discovered_total",
			Help: "Channels created by scans",
		}),
		storedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_messages_stored_total",
			Help: "Messages inserted by scans",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_channel_fetch_errors_total",
			Help: "Per-channel message fetch failures",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_scan_pass_duration_seconds",
			Help:    "Duration of full scan passes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	reg.MustRegister(c.scans, c.newChannels, c.storedMessages, c.fetchErrors, c.passDuration)
	return c
}

// ScanFinished records the outcome of one keyword scan
func (c *Collector) ScanFinished(status string, newChannels, storedMessages, fetchErrors int) {
	if c == nil {
		return
	}
	c.scans.WithLabelValues(status).Inc()
	c.newChannels.Add(float64(newChannels))
	c.storedMessages.Add(float64(storedMessages))
	c.fetchErrors.Add(float64(fetchErrors))
}

// PassFinished records the duration of a scan pass
func (c *Collector) PassFinished(d time.Duration) {
	if c == nil {
		return
	}
	c.passDuration.Observe(d.Seconds())
}

var (
	keywordsDesc = prometheus.NewDesc(
		"scout_keywords",
		"Keywords in the store",
		nil, nil,
	)
	channelsDesc = prometheus.NewDesc(
		"scout_channels",
		"Channels in the store by extracted attribute",
		[]string{"attribute"}, nil,
	)
	messagesDesc = prometheus.NewDesc(
		"scout_messages",
		"Messages in the store",
		nil, nil,
	)
)

// StoreCollector is a custom Prometheus collector that reads dashboard
// totals from the store on each scrape.
type StoreCollector struct {
	repository storage.Repository
	log        *logger.Logger
}

// NewStoreCollector creates a collector over repository
func NewStoreCollector(repository storage.Repository, log *logger.Logger) *StoreCollector {
	return &StoreCollector{repository: repository, log: log.WithComponent("metrics")}
}

// Describe sends the metric descriptors to the channel.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keywordsDesc
	ch <- channelsDesc
	ch <- messagesDesc
}

// Collect queries the store and emits the totals as gauges.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := c.repository.Stats(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to collect store metrics")
		return
	}

	ch <- prometheus.MustNewConstMetric(keywordsDesc, prometheus.GaugeValue, float64(stats.TotalKeywords))
	ch <- prometheus.MustNewConstMetric(channelsDesc, prometheus.GaugeValue, float64(stats.TotalChannels), "all")
	ch <- prometheus.MustNewConstMetric(channelsDesc, prometheus.GaugeValue, float64(stats.ChannelsWithPhone), "phone")
	ch <- prometheus.MustNewConstMetric(channelsDesc, prometheus.GaugeValue, float64(stats.ChannelsWithLocation), "location")
	ch <- prometheus.MustNewConstMetric(messagesDesc, prometheus.GaugeValue, float64(stats.TotalMessages))
}

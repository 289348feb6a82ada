package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest / compositing metrics
	samplesIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_samples_ingested_total",
		Help: "NDVI scene samples accepted per region by source",
	}, []string{"region", "source"}) // source=simulated|import

	cloudySamplesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_cloudy_samples_dropped_total",
		Help: "Scene samples discarded for excessive cloud cover per region",
	}, []string{"region"})

	compositesBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_composites_built_total",
		Help: "16-day maximum-value composites published per region",
	}, []string{"region"})

	compositeScenes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloomwatch_composite_scenes",
		Help: "Scenes that fed the last composite per region",
	}, []string{"region"})

	// Detection / forecast metrics
	detectionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_detection_runs_total",
		Help: "Bloom detection passes per region by outcome",
	}, []string{"region", "outcome"}) // outcome=bloom|known|no_peak

	bloomsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_blooms_detected_total",
		Help: "Bloom events detected per region by intensity",
	}, []string{"region", "intensity"})

	seriesLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloomwatch_series_length",
		Help: "Composites in the analysed NDVI series per region",
	}, []string{"region"})

	forecastRefitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_forecast_refits_total",
		Help: "Forecast model refits per region by outcome",
	}, []string{"region", "outcome"}) // outcome=success|error

	forecastFitDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bloomwatch_forecast_fit_duration_seconds",
		Help:    "Time spent fitting the seasonal trend model",
		Buckets: prometheus.DefBuckets,
	})

	// Storage / messaging metrics
	influxWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_influx_writes_total",
		Help: "InfluxDB write batches by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	duplicateMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_duplicate_messages_total",
		Help: "Broker redeliveries suppressed by payload dedup per topic class",
	}, []string{"kind"}) // kind=composite|bloom|event

	// Delivery metrics
	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_webhook_deliveries_total",
		Help: "Webhook delivery attempts per subscriber by outcome",
	}, []string{"subscriber", "outcome"}) // outcome=delivered|rejected|timeout

	// Gateway metrics
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloomwatch_gateway_requests_total",
		Help: "Dashboard gateway requests by route and outcome",
	}, []string{"route", "outcome"}) // outcome=ok|error|degraded

	exportRowsWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloomwatch_export_rows_written",
		Help: "Rows in the last processed-series CSV export",
	})
)

func IncSampleIngested(region, source string) {
	samplesIngestedTotal.WithLabelValues(region, source).Inc()
}
func IncCloudySampleDropped(region string) { cloudySamplesDroppedTotal.WithLabelValues(region).Inc() }

func RecordComposite(region string, scenes int) {
	compositesBuiltTotal.WithLabelValues(region).Inc()
	compositeScenes.WithLabelValues(region).Set(float64(scenes))
}

func IncDetectionRun(region, outcome string) {
	detectionRunsTotal.WithLabelValues(region, outcome).Inc()
}
func IncBloomDetected(region, intensity string) {
	bloomsDetectedTotal.WithLabelValues(region, intensity).Inc()
}
func RecordSeriesLength(region string, n int) {
	seriesLength.WithLabelValues(region).Set(float64(n))
}

func IncForecastRefit(region, outcome string) {
	forecastRefitsTotal.WithLabelValues(region, outcome).Inc()
}
func ObserveForecastFit(seconds float64) { forecastFitDurationSeconds.Observe(seconds) }

func IncInfluxWrite(outcome string)   { influxWritesTotal.WithLabelValues(outcome).Inc() }
func IncDuplicateMessage(kind string) { duplicateMessagesTotal.WithLabelValues(kind).Inc() }

func IncWebhookDelivery(sub, outcome string) {
	webhookDeliveriesTotal.WithLabelValues(sub, outcome).Inc()
}

func IncGatewayRequest(route, outcome string) {
	gatewayRequestsTotal.WithLabelValues(route, outcome).Inc()
}
func RecordExportRows(n int) { exportRowsWritten.Set(float64(n)) }

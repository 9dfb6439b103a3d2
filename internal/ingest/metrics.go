package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultlink_ingest_events_total",
		Help: "Channel events handed to the batcher.",
	})
	batchesFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultlink_ingest_batches_total",
		Help: "Batches flushed by the batcher, by outcome.",
	}, []string{"outcome"})
	pendingGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultlink_ingest_pending_groups",
		Help: "Media groups waiting for their debounce window to close.",
	})
	itemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultlink_ingest_item_failures_total",
		Help: "Events whose item could not be stored.",
	})
	linksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultlink_links_created_total",
		Help: "Links issued by the ingestion pipeline.",
	})
)

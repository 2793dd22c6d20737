package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_searches_total",
		Help: "Searches served, labelled by whether any product matched.",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_search_duration_seconds",
		Help:    "Time spent fetching, scoring and sorting one search.",
		Buckets: prometheus.DefBuckets,
	})

	searchClicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_search_clicks_total",
		Help: "Clicks attributed to a search, by attribution method.",
	}, []string{"attribution"})

	personalizationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_personalization_total",
		Help: "Personalized recommendation requests by outcome status.",
	}, []string{"status"})

	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_collaborator_failures_total",
		Help: "Failed calls to catalog, history and search log collaborators.",
	}, []string{"collaborator"})
)

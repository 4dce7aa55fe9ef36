package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embuild_asset_imports_total",
			Help: "Number of accepted asset imports, by bucket",
		},
		[]string{"bucket"},
	)

	DuplicateImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embuild_asset_duplicate_imports_total",
			Help: "Number of imports of an asset already present in its bundle",
		},
		[]string{"strategy"},
	)

	TransformOverrides = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embuild_transform_overrides_total",
			Help: "Number of import transforms replaced by a later addon",
		},
	)
)

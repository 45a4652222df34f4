package otel

import (
	"encoding/json"
	"net/http"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type metricView struct {
	Scope       string `json:"scope"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Data        any    `json:"data"`
}

// MetricsHandler serves a JSON snapshot of everything reader has collected.
func MetricsHandler(reader sdkmetric.Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(r.Context(), &rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		views := make([]metricView, 0)
		for _, scope := range rm.ScopeMetrics {
			for _, m := range scope.Metrics {
				views = append(views, metricView{
					Scope:       scope.Scope.Name,
					Name:        m.Name,
					Description: m.Description,
					Unit:        m.Unit,
					Data:        m.Data,
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"metrics": views})
	})
}

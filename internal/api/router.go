package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smukkama/store-monitoring/internal/metrics"
	"github.com/smukkama/store-monitoring/internal/report"
)

// Reports is the report job surface the API serves
type Reports interface {
	Trigger(ctx context.Context) (string, error)
	Status(ctx context.Context, reportID string) (*report.Job, error)
}

// NewRouter builds the HTTP routes
func NewRouter(reports Reports) *mux.Router {
	s := &Server{reports: reports}

	r := mux.NewRouter()
	r.Use(countRequests)

	r.HandleFunc("/", s.root).Methods("GET")
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/trigger_report", s.triggerReport).Methods("GET")
	r.HandleFunc("/get_report", s.getReport).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

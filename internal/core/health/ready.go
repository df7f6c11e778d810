package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter is satisfied by *refdata.Manager.
type ReadinessReporter interface {
	Readiness() (ready bool, generation uint64)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status     string `json:"status"`
			Generation uint64 `json:"generation,omitempty"`
		}
		ready, gen := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.Generation = gen
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

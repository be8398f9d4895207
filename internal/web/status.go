package web

import (
	"net/http"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !metrics.Global.Healthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()
	if s.Quota != nil {
		for k, v := range s.Quota.GetStats() {
			stats[k] = v
		}
	}
	if s.Emails != nil {
		if c, err := s.Emails.Counts(r.Context()); err == nil {
			stats["email_subscribers"] = c
		} else {
			logger.Warn("Email subscriber counts failed", "error", err)
		}
	}
	if s.Phones != nil {
		if c, err := s.Phones.Counts(r.Context()); err == nil {
			stats["sms_subscribers"] = c
		} else {
			logger.Warn("SMS subscriber counts failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

package server

import (
	"net/http"
	"net/url"
	"strings"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *Server) setupHTTPRoutes() {
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/api/records", s.corsMiddleware(s.HandleRecords))                    // Listing + aggregates + summary (GET)
	s.mux.HandleFunc("/api/records/datatable", s.corsMiddleware(s.HandleRecordsDatatable)) // DataTables server-side protocol (GET/POST)
	s.mux.HandleFunc("/api/aggregates", s.corsMiddleware(s.HandleAggregates))              // Count tables only (GET)
	s.mux.HandleFunc("/api/geo", s.corsMiddleware(s.HandleGeo))                            // Coordinate/mass triples for maps (GET)
	s.mux.HandleFunc("/api/refresh", s.corsMiddleware(s.HandleRefresh))                    // On-demand staleness check (POST)
	s.mux.HandleFunc("/api/journal", s.corsMiddleware(s.HandleJournal))                    // Recent refresh journal entries (GET)
	s.mux.HandleFunc("/api/stats", s.corsMiddleware(s.HandleStats))                        // Dataset + process stats (GET)
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))                           // Refresh lifecycle events
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates the request origin against server.allowed_origins.
// Requests without an Origin header (curl, same-origin) are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	originBase := parsed.Scheme + "://" + parsed.Hostname()
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if strings.EqualFold(originBase, allowed) {
			return true
		}
	}
	return false
}

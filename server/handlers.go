package server

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/refresh"
)

// HandleHealth reports liveness, controller state and snapshot age.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	resp := map[string]interface{}{
		"status":         "ok",
		"state":          stateString(s.getState()),
		"refresh_status": string(s.controller.Status()),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	}

	if snap := s.holder.Current(); snap != nil {
		resp["snapshot"] = map[string]interface{}{
			"records":     snap.Len(),
			"fetched_at":  snap.FetchedAt().UTC().Format(time.RFC3339),
			"age_seconds": int(time.Since(snap.FetchedAt()).Seconds()),
		}
	} else {
		resp["snapshot"] = nil
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleRecords serves a capped listing of records with the derived count
// tables and summary stats alongside, the one-call payload a datasheet page
// needs.
func (s *Server) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no dataset snapshot available yet")
		return
	}

	filter := dataset.Filter{NameContains: r.URL.Query().Get("search")}
	page := dataset.Page{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", s.cfg.Server.ListingCap),
	}
	if page.Limit > s.cfg.Server.ListingCap {
		page.Limit = s.cfg.Server.ListingCap
	}

	result := snap.Query(filter, page)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":        result.Rows,
		"total_count":    result.TotalCount,
		"filtered_count": result.FilteredCount,
		"aggregates":     snap.Aggregates(),
		"fetched_at":     snap.FetchedAt().UTC().Format(time.RFC3339),
	})
}

// datatableResponse is the server-side DataTables answer shape.
type datatableResponse struct {
	Draw            int              `json:"draw"`
	RecordsTotal    int              `json:"recordsTotal"`
	RecordsFiltered int              `json:"recordsFiltered"`
	Data            []dataset.Record `json:"data"`
}

// HandleRecordsDatatable speaks the DataTables server-side protocol:
// draw/start/length/search[value] in, draw/recordsTotal/recordsFiltered/data
// out. The draw counter is echoed untouched so the widget can discard
// out-of-order responses.
func (s *Server) HandleRecordsDatatable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no dataset snapshot available yet")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request parameters")
		return
	}

	draw := formInt(r, "draw", 0)
	start := formInt(r, "start", 0)
	length := formInt(r, "length", 10)
	search := r.Form.Get("search[value]")

	if length <= 0 || length > s.cfg.Server.ListingCap {
		length = s.cfg.Server.ListingCap
	}

	result := snap.Query(
		dataset.Filter{NameContains: search},
		dataset.Page{Offset: start, Limit: length},
	)

	writeJSON(w, http.StatusOK, datatableResponse{
		Draw:            draw,
		RecordsTotal:    result.TotalCount,
		RecordsFiltered: result.FilteredCount,
		Data:            result.Rows,
	})
}

// HandleAggregates serves the derived count tables on their own.
func (s *Server) HandleAggregates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no dataset snapshot available yet")
		return
	}

	writeJSON(w, http.StatusOK, snap.Aggregates())
}

// HandleGeo serves latitude/longitude/mass triples for map consumers.
func (s *Server) HandleGeo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no dataset snapshot available yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": dataset.GeoPoints(snap.Records()),
	})
}

// HandleRefresh triggers an on-demand staleness check. The check itself
// decides whether a refetch happens; a count-match is a success, not an
// error. Runs synchronously so the response reflects the outcome.
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	err := s.controller.CheckStaleness(r.Context(), refresh.TriggerManual)
	if err != nil {
		s.logger.Warnw("Manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}

	resp := map[string]interface{}{
		"refresh_status": string(s.controller.Status()),
	}
	if snap := s.holder.Current(); snap != nil {
		resp["records"] = snap.Len()
		resp["fetched_at"] = snap.FetchedAt().UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleJournal serves recent refresh journal entries, newest first.
func (s *Server) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh journal not configured")
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	entries, err := s.journal.Recent(limit)
	if err != nil {
		s.logger.Errorw("Failed to read refresh journal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read refresh journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// HandleStats serves dataset headline stats plus a process/system block.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	system := map[string]interface{}{
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_bytes": memStats.HeapAlloc,
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["host_memory_total_bytes"] = vm.Total
		system["host_memory_available_bytes"] = vm.Available
	}

	resp := map[string]interface{}{
		"refresh_status": string(s.controller.Status()),
		"system":         system,
	}
	if snap := s.holder.Current(); snap != nil {
		resp["dataset"] = map[string]interface{}{
			"records":    snap.Len(),
			"fetched_at": snap.FetchedAt().UTC().Format(time.RFC3339),
			"summary":    snap.Aggregates().Summary,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// formInt reads an integer from parsed form values (query or POST body).
func formInt(r *http.Request, key string, fallback int) int {
	raw := r.Form.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sprite/internal/logging"
)

const defaultLogLimit = 100

type logQuery struct {
	Limit int
	Since time.Time
	Level logging.Level
}

// logsHandler serves the logger's recent entries as JSON, oldest first.
type logsHandler struct {
	logger *logging.Logger
}

func (h *logsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.logger == nil || h.logger.Buffer() == nil {
		http.Error(w, "log buffer unavailable", http.StatusInternalServerError)
		return
	}
	query, message := parseLogQuery(r)
	if message != "" {
		http.Error(w, message, http.StatusBadRequest)
		return
	}
	entries := filterLogEntries(h.logger.Buffer().List(), query)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func parseLogQuery(r *http.Request) (logQuery, string) {
	values := r.URL.Query()
	query := logQuery{Limit: defaultLogLimit}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return query, "invalid limit"
		}
		query.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, "invalid since timestamp"
		}
		query.Since = since
	}
	if raw := strings.TrimSpace(values.Get("level")); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return query, "invalid log level"
		}
		query.Level = level
	}
	return query, ""
}

func filterLogEntries(entries []logging.Entry, query logQuery) []logging.Entry {
	filtered := make([]logging.Entry, 0, len(entries))
	for _, entry := range entries {
		if query.Level != "" && !logging.LevelAtLeast(entry.Level, query.Level) {
			continue
		}
		if !query.Since.IsZero() && entry.Timestamp.Before(query.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}
	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[len(filtered)-query.Limit:]
	}
	return filtered
}

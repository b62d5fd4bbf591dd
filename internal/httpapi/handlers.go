// Package httpapi exposes the sync core to local UI code over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kunj2210/codeduel-sync/internal/realtime"
	"github.com/kunj2210/codeduel-sync/internal/streak"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func RealtimeStatus(co *realtime.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, co.Snapshot())
	}
}

func SubscribeTopic(co *realtime.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Topic string `json:"topic"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
			http.Error(w, "missing topic", http.StatusBadRequest)
			return
		}
		co.Subscribe(req.Topic)
		w.WriteHeader(http.StatusAccepted)
	}
}

func UnsubscribeTopic(co *realtime.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		co.Unsubscribe()
		w.WriteHeader(http.StatusAccepted)
	}
}

func GetActivity(eng *streak.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Load())
	}
}

func GetActivityStats(eng *streak.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Stats())
	}
}

func RecordActivity(eng *streak.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date string `json:"date"`
		}
		// Body is optional; an empty or absent date records today.
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Date == "" {
			writeJSON(w, http.StatusOK, eng.RecordActivity())
			return
		}
		t, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "bad date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, eng.RecordActivityAt(t))
	}
}

func RecalculateActivity(eng *streak.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Recalculate())
	}
}

func ResetActivity(eng *streak.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Reset())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

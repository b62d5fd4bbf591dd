package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kunj2210/codeduel-sync/internal/realtime"
	"github.com/kunj2210/codeduel-sync/internal/streak"
)

func SetupRoutes(co *realtime.Coordinator, eng *streak.Engine) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)

	r.Get("/realtime/status", RealtimeStatus(co))
	r.Post("/realtime/subscribe", SubscribeTopic(co))
	r.Post("/realtime/unsubscribe", UnsubscribeTopic(co))

	r.Get("/activity", GetActivity(eng))
	r.Get("/activity/stats", GetActivityStats(eng))
	r.Post("/activity", RecordActivity(eng))
	r.Post("/activity/recalculate", RecalculateActivity(eng))
	r.Delete("/activity", ResetActivity(eng))

	return r
}

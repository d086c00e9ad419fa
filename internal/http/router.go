package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/apiverse/internal/observability"
)

// RouterConfig holds transport settings applied around the data routes.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Limiter guards data routes; nil disables rate limiting.
	Limiter *rate.Limiter
}

// NewRouter mounts every route. /health and /metrics bypass the rate limit
// and the request timeout.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	if h.svc.Weather != nil {
		api.HandleFunc("/weather/date/{date}", h.GetWeatherDay).Methods(http.MethodGet)
		api.HandleFunc("/weather/month/{month}", h.GetWeatherMonth).Methods(http.MethodGet)
	}
	if h.svc.Gradebook != nil {
		api.HandleFunc("/gradebook/courses", h.PostCourse).Methods(http.MethodPost)
		api.HandleFunc("/gradebook/courses/{courseId}", h.GetCourse).Methods(http.MethodGet)
		api.HandleFunc("/gradebook/courses/{courseId}/students", h.GetCourseStudents).Methods(http.MethodGet)
	}
	if h.svc.Entities != nil {
		api.HandleFunc("/starwars/{kind}", h.ListEntities).Methods(http.MethodGet)
		api.HandleFunc("/starwars/{kind}/{id}", h.GetEntity).Methods(http.MethodGet)
	}
	if h.svc.Text != nil {
		api.HandleFunc("/text", h.GetText).Methods(http.MethodGet)
	}
	if h.svc.Images != nil {
		api.HandleFunc("/images/{category}/{name}/{width}/{height}", h.GetImage).Methods(http.MethodGet)
	}
	api.HandleFunc("/download_file", h.DownloadFile).Methods(http.MethodGet)
	return router
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/lifecycle"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/service"
	"github.com/kjstillabower/apiverse/internal/traffic"
	"github.com/kjstillabower/apiverse/internal/validation"
)

// HealthConfig holds thresholds and dependency probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
	Version          string
	// StorePing is required; a failing store makes the service degraded.
	StorePing func(ctx context.Context) error
	// CachePing, when set, is reported as a check. Used when backend is memcached.
	CachePing func() error
}

// Services are the resolution engines served over HTTP. Nil services answer 404.
type Services struct {
	Weather   *service.WeatherService
	Gradebook *service.GradebookService
	Entities  *service.EntityService
	Text      *service.TextService
	Images    *service.ImageService
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc              Services
	downloadDir      string
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. downloadDir is where rendered downloads are saved.
func NewHandler(svc Services, downloadDir string, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:          svc,
		downloadDir:  downloadDir,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetWeatherDay handles GET /weather/date/{date}.
func (h *Handler) GetWeatherDay(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFormat(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Weather.ResolveDay(r.Context(), mux.Vars(r)["date"], f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutput(w, out)
}

// GetWeatherMonth handles GET /weather/month/{month}.
func (h *Handler) GetWeatherMonth(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFormat(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Weather.ResolveMonth(r.Context(), mux.Vars(r)["month"], f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutput(w, out)
}

// maxCourseBody bounds POST /gradebook/courses bodies. Student writes are not
// cut short by the request deadline, so large courses may run past it.
const maxCourseBody = 64 << 10

// PostCourse handles POST /gradebook/courses.
func (h *Handler) PostCourse(w http.ResponseWriter, r *http.Request) {
	var spec models.CourseSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCourseBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid course body: "+err.Error())
		return
	}
	course, err := h.svc.Gradebook.CreateCourse(r.Context(), spec)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// GetCourse handles GET /gradebook/courses/{courseId}.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	header, err := h.svc.Gradebook.GetCourseHeader(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, header)
}

// GetCourseStudents handles GET /gradebook/courses/{courseId}/students.
func (h *Handler) GetCourseStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.Gradebook.GetStudents(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// ListEntities handles GET /starwars/{kind}.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	f, ok := parseFormat(w, r)
	if !ok {
		return
	}
	qv := r.URL.Query()
	limit, offset, err := validation.ValidatePagination(qv.Get("limit"), qv.Get("skip"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	q := service.Query{Kind: kind, Limit: limit, Offset: offset, Search: strings.TrimSpace(qv.Get("search"))}
	out, err := h.svc.Entities.ResolveEntities(r.Context(), q, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutput(w, out)
}

// GetEntity handles GET /starwars/{kind}/{id}.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	f, ok := parseFormat(w, r)
	if !ok {
		return
	}
	id, err := validation.ValidateEntityID(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Entities.ResolveEntity(r.Context(), kind, id, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutput(w, out)
}

// GetText handles GET /text. Unknown type and length values fall back to lorem/medium.
func (h *Handler) GetText(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFormat(w, r)
	if !ok {
		return
	}
	qv := r.URL.Query()
	count, err := validation.ValidateParagraphCount(qv.Get("count"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Text.Resolve(r.Context(), qv.Get("type"), qv.Get("length"), count, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutput(w, out)
}

// GetImage handles GET /images/{category}/{name}/{width}/{height}.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	category, err := validation.ValidateName("category", vars["category"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	name, err := validation.ValidateName("name", vars["name"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	width, height, err := validation.ValidateImageSize(vars["width"], vars["height"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	img, err := h.svc.Images.Resolve(r.Context(), category, name, width, height)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := os.Stat(img.Path); err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no image available for category "+category)
		return
	}
	http.ServeFile(w, r, img.Path)
}

// DownloadFile handles GET /download_file?file=<name>.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	path, err := format.DownloadPath(h.downloadDir, name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid file: "+name)
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "file not found or expired: "+name)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	storeErr := h.pingStore(r.Context())
	result := h.computeHealthStatus(storeErr)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": checkStatus(storeErr)}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		checks["cache"] = checkStatus(h.healthConfig.CachePing())
	}
	version := "dev"
	resp := map[string]any{
		"status":    result.status,
		"service":   "apiverse",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil {
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
		if !h.healthConfig.StartTime.IsZero() {
			resp["uptimeSeconds"] = int(time.Since(h.healthConfig.StartTime).Seconds())
		}
	}
	resp["version"] = version
	writeJSON(w, result.statusCode, resp)
}

func (h *Handler) pingStore(ctx context.Context) error {
	if h.healthConfig == nil || h.healthConfig.StorePing == nil {
		return nil
	}
	return h.healthConfig.StorePing(ctx)
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > error rate breach > healthy.
func (h *Handler) computeHealthStatus(storeErr error) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if storeErr != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func parseFormat(w http.ResponseWriter, r *http.Request) (format.Format, bool) {
	f, err := format.Parse(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return "", false
	}
	return f, true
}

// parseKind answers 404 for kinds that are not exposed.
func parseKind(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return "", false
	}
	return kind, true
}

// writeOutput writes a rendered result with its content type.
func writeOutput(w http.ResponseWriter, out format.Output) {
	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Content)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps the service error taxonomy onto status codes.
// Anything unclassified is reported as a store outage and logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, r, http.StatusConflict, "ALREADY_EXISTS", err.Error())
	default:
		observability.LoggerFrom(r.Context()).Warn("request failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Unable to resolve data")
	}
}

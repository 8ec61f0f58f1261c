package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/scheduling"
)

// Reports is the read side of the scheduler used by the admin endpoints.
type Reports interface {
	Statistics(ctx context.Context) (*scheduling.Statistics, error)
	PeriodStatistics(ctx context.Context, from, to time.Time) (*scheduling.PeriodStatistics, error)
	ReminderDigest(ctx context.Context) (*scheduling.ReminderDigest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
}

type Config struct {
	Reports  Reports
	Gatherer prometheus.Gatherer
	// Ping checks the database; nil means always healthy.
	Ping func(ctx context.Context) error
	Log  zerolog.Logger
}

// New builds the admin router: health, metrics and read-only reports.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.Log))

	h := &handler{reports: cfg.Reports, ping: cfg.Ping, log: cfg.Log}

	r.Get("/healthz", h.health)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/statistics", h.statistics)
		v1.Get("/statistics/period", h.periodStatistics)
		v1.Get("/reminders", h.reminders)
		v1.Get("/appointments/{id}", h.appointment)
	})
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("latency", time.Since(started)).
				Msg("http request")
		})
	}
}

type handler struct {
	reports Reports
	ping    func(ctx context.Context) error
	log     zerolog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.reports.Statistics(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) periodStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := model.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: expected YYYY-MM-DD")
		return
	}
	to, err := model.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: expected YYYY-MM-DD")
		return
	}

	st, err := h.reports.PeriodStatistics(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) reminders(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.ReminderDigest(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]summary{
		"to_confirm": summariesOf(d.ToConfirm),
		"to_remind":  summariesOf(d.ToRemind),
		"late":       summariesOf(d.Late),
	})
}

func (h *handler) appointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	a, err := h.reports.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryOf(a))
}

// summary is the compact appointment shape used by dashboards and the reminder sweep.
type summary struct {
	ID             string `json:"id"`
	PatientID      string `json:"patient_id"`
	DriverID       string `json:"driver_id"`
	VehicleID      string `json:"vehicle_id"`
	Date           string `json:"date"`
	DepartureTime  string `json:"departure_time"`
	ReturnTime     string `json:"expected_return_time,omitempty"`
	Destination    string `json:"destination"`
	AttendanceType string `json:"attendance_type"`
	Priority       string `json:"priority"`
	Status         string `json:"status"`
	IsReturnTrip   bool   `json:"is_return_trip"`
}

func summaryOf(a *model.Appointment) summary {
	s := summary{
		ID:             a.ID.String(),
		PatientID:      a.PatientID.String(),
		DriverID:       a.DriverID.String(),
		VehicleID:      a.VehicleID.String(),
		Date:           model.DayKey(a.Day()),
		DepartureTime:  a.DepartureTime.String(),
		Destination:    a.DestinationName,
		AttendanceType: string(a.AttendanceType),
		Priority:       string(a.Priority),
		Status:         string(a.Status),
		IsReturnTrip:   a.IsReturnTrip,
	}
	if a.ExpectedReturnTime != nil {
		s.ReturnTime = a.ExpectedReturnTime.String()
	}
	return s
}

func summariesOf(in []model.Appointment) []summary {
	out := make([]summary, 0, len(in))
	for i := range in {
		out = append(out, summaryOf(&in[i]))
	}
	return out
}

var kindStatus = map[scheduling.Kind]int{
	scheduling.KindValidation:        http.StatusBadRequest,
	scheduling.KindPolicy:            http.StatusUnprocessableEntity,
	scheduling.KindIneligible:        http.StatusUnprocessableEntity,
	scheduling.KindIncompatible:      http.StatusUnprocessableEntity,
	scheduling.KindBusy:              http.StatusConflict,
	scheduling.KindDoubleBooked:      http.StatusConflict,
	scheduling.KindInvalidTransition: http.StatusConflict,
	scheduling.KindNotFound:          http.StatusNotFound,
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	se := scheduling.AsError(err)
	code, ok := kindStatus[se.Kind]
	if !ok {
		code = http.StatusInternalServerError
		h.log.Error().Err(err).Msg("admin request failed")
	}
	writeJSON(w, code, map[string]any{
		"ok":         false,
		"error_kind": se.Kind,
		"code":       se.Code,
		"message":    se.Message,
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/patient-transport/internal/metrics"
	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/scheduling"
)

type fakeReports struct {
	stats       *scheduling.Statistics
	appointment *model.Appointment
	gotFrom     time.Time
	gotTo       time.Time
}

func (f *fakeReports) Statistics(context.Context) (*scheduling.Statistics, error) {
	return f.stats, nil
}

func (f *fakeReports) PeriodStatistics(_ context.Context, from, to time.Time) (*scheduling.PeriodStatistics, error) {
	f.gotFrom, f.gotTo = from, to
	if to.Before(from) {
		return nil, &scheduling.Error{Kind: scheduling.KindValidation, Code: scheduling.CodeInvalidField, Message: "bad period"}
	}
	return &scheduling.PeriodStatistics{From: model.DayKey(from), To: model.DayKey(to), Total: 3}, nil
}

func (f *fakeReports) ReminderDigest(context.Context) (*scheduling.ReminderDigest, error) {
	return &scheduling.ReminderDigest{
		ToConfirm: []model.Appointment{*f.appointment},
		ToRemind:  []model.Appointment{},
		Late:      []model.Appointment{},
	}, nil
}

func (f *fakeReports) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	if f.appointment != nil && f.appointment.ID == id {
		return f.appointment, nil
	}
	return nil, &scheduling.Error{Kind: scheduling.KindNotFound, Code: scheduling.CodeAppointmentNotFound, Message: "not found"}
}

func newTestRouter(t *testing.T, ping func(context.Context) error) (http.Handler, *fakeReports) {
	t.Helper()

	ret := model.ClockTime("10:30")
	reports := &fakeReports{
		stats: &scheduling.Statistics{Total: 7, Pending: 2, Cancelled: 1},
		appointment: &model.Appointment{
			ID:                 uuid.New(),
			Date:               model.DateOf(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)),
			DepartureTime:      "09:00",
			ExpectedReturnTime: &ret,
			DestinationName:    "Hospital de Clínicas",
			AttendanceType:     model.AttendanceConsultation,
			Priority:           model.PriorityNormal,
			Status:             model.AppointmentStatusScheduled,
		},
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	m.ObserveOperation("create", "accepted", 0.01)

	return New(Config{Reports: reports, Gatherer: reg, Ping: ping, Log: zerolog.Nop()}), reports
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	down, _ := newTestRouter(t, func(context.Context) error { return errors.New("connection refused") })
	rec, body = get(t, down, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, _ := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `transport_scheduling_operations_total{operation="create",outcome="accepted"} 1`)
}

func TestStatistics(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, body := get(t, h, "/v1/statistics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["total"])
	assert.Equal(t, float64(2), body["pendentes"])
	assert.Equal(t, float64(1), body["cancelados"])
}

func TestPeriodStatistics(t *testing.T) {
	h, reports := newTestRouter(t, nil)

	rec, body := get(t, h, "/v1/statistics/period?from=2024-06-01&to=2024-06-30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-01", body["from"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), reports.gotTo)

	rec, _ = get(t, h, "/v1/statistics/period?from=junho&to=2024-06-30")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = get(t, h, "/v1/statistics/period?from=2024-06-30&to=2024-06-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", body["error_kind"])
	assert.Equal(t, "InvalidField", body["code"])
}

func TestReminders(t *testing.T) {
	h, reports := newTestRouter(t, nil)
	rec, body := get(t, h, "/v1/reminders")
	require.Equal(t, http.StatusOK, rec.Code)

	toConfirm := body["to_confirm"].([]any)
	require.Len(t, toConfirm, 1)
	first := toConfirm[0].(map[string]any)
	assert.Equal(t, reports.appointment.ID.String(), first["id"])
	assert.Equal(t, "2024-06-10", first["date"])
	assert.Equal(t, "10:30", first["expected_return_time"])
	assert.Empty(t, body["late"])
}

func TestAppointment(t *testing.T) {
	h, reports := newTestRouter(t, nil)

	rec, body := get(t, h, "/v1/appointments/"+reports.appointment.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agendado", body["status"])
	assert.Equal(t, "Hospital de Clínicas", body["destination"])

	rec, body = get(t, h, "/v1/appointments/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", body["error_kind"])

	rec, _ = get(t, h, "/v1/appointments/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/scheduling"
)

// Requests and responses travel as google.protobuf.Struct; the shapes below are their JSON form.

type destinationDTO struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type appointmentRequest struct {
	ID                    string         `json:"id"`
	PatientID             string         `json:"patient_id"`
	DriverID              string         `json:"driver_id"`
	VehicleID             string         `json:"vehicle_id"`
	Date                  string         `json:"date"`
	DepartureTime         string         `json:"departure_time"`
	ExpectedReturnTime    string         `json:"expected_return_time"`
	Destination           destinationDTO `json:"destination"`
	AttendanceType        string         `json:"attendance_type"`
	Specialty             string         `json:"specialty"`
	Priority              string         `json:"priority"`
	HasCompanion          bool           `json:"has_companion"`
	CompanionName         string         `json:"companion_name"`
	CompanionPhone        string         `json:"companion_phone"`
	CompanionRelationship string         `json:"companion_relationship"`
	GenerateReturn        bool           `json:"generate_return"`
	Notes                 string         `json:"notes"`
	Actor                 string         `json:"actor"`
}

// lifecycleRequest covers every call addressed to one existing appointment.
type lifecycleRequest struct {
	ID            string `json:"id"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
	Notes         string `json:"notes"`
	OdometerStart *int   `json:"odometer_start"`
	OdometerEnd   *int   `json:"odometer_end"`
	PatientRating int    `json:"patient_rating"`
	ServiceRating int    `json:"service_rating"`
}

type listRequest struct {
	Statuses  []string `json:"statuses"`
	PatientID string   `json:"patient_id"`
	DriverID  string   `json:"driver_id"`
	VehicleID string   `json:"vehicle_id"`
	Date      string   `json:"date"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
}

type suggestRequest struct {
	DriverID    string `json:"driver_id"`
	VehicleID   string `json:"vehicle_id"`
	Date        string `json:"date"`
	DurationMin int    `json:"duration_min"`
}

type periodRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type appointmentView struct {
	ID                    string         `json:"id"`
	PatientID             string         `json:"patient_id"`
	DriverID              string         `json:"driver_id"`
	VehicleID             string         `json:"vehicle_id"`
	Date                  string         `json:"date"`
	DepartureTime         string         `json:"departure_time"`
	ExpectedReturnTime    string         `json:"expected_return_time,omitempty"`
	Destination           destinationDTO `json:"destination"`
	AttendanceType        string         `json:"attendance_type"`
	Specialty             string         `json:"specialty,omitempty"`
	Priority              string         `json:"priority"`
	Status                string         `json:"status"`
	IsReturnTrip          bool           `json:"is_return_trip"`
	OriginAppointmentID   string         `json:"origin_appointment_id,omitempty"`
	GenerateReturn        bool           `json:"generate_return"`
	HasCompanion          bool           `json:"has_companion"`
	CompanionName         string         `json:"companion_name,omitempty"`
	CompanionPhone        string         `json:"companion_phone,omitempty"`
	CompanionRelationship string         `json:"companion_relationship,omitempty"`
	ActualDepartureAt     *time.Time     `json:"actual_departure_at,omitempty"`
	ActualReturnAt        *time.Time     `json:"actual_return_at,omitempty"`
	OdometerStart         *int           `json:"odometer_start,omitempty"`
	OdometerEnd           *int           `json:"odometer_end,omitempty"`
	DistanceKm            *int           `json:"distance_km,omitempty"`
	PatientRating         *int           `json:"patient_rating,omitempty"`
	ServiceRating         *int           `json:"service_rating,omitempty"`
	RatingNotes           string         `json:"rating_notes,omitempty"`
	ConfirmedBy           string         `json:"confirmed_by,omitempty"`
	ConfirmedAt           *time.Time     `json:"confirmed_at,omitempty"`
	CancelledBy           string         `json:"cancelled_by,omitempty"`
	CancellationReason    string         `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time     `json:"cancelled_at,omitempty"`
	NoShowReason          string         `json:"no_show_reason,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	TripNotes             string         `json:"trip_notes,omitempty"`
	CreatedBy             string         `json:"created_by,omitempty"`
}

type warningView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resultView struct {
	OK          bool             `json:"ok"`
	Appointment *appointmentView `json:"appointment,omitempty"`
	Warnings    []warningView    `json:"warnings"`
	ReturnTrip  *appointmentView `json:"return_trip,omitempty"`
}

type eventView struct {
	Type      string          `json:"type"`
	Actor     string          `json:"actor,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Details   json.RawMessage `json:"details,omitempty"`
}

type conflictView struct {
	AppointmentID string `json:"appointment_id"`
	ResourceType  string `json:"resource_type"`
	ResourceID    string `json:"resource_id"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

type errorView struct {
	OK        bool           `json:"ok"`
	ErrorKind string         `json:"error_kind"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Conflicts []conflictView `json:"conflicts"`
}

func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// parseID returns uuid.Nil for an empty string, so the scheduling core reports the missing field.
func parseID(field, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s: invalid id %q", field, s)
	}
	return id, nil
}

func requireID(field, s string) (uuid.UUID, error) {
	id, err := parseID(field, s)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	return id, nil
}

func optionalID(field, s string) (*uuid.UUID, error) {
	id, err := parseID(field, s)
	if err != nil || id == uuid.Nil {
		return nil, err
	}
	return &id, nil
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s: expected YYYY-MM-DD, got %q", field, s)
	}
	return d, nil
}

func optionalDate(field, s string) (*time.Time, error) {
	d, err := parseDate(field, s)
	if err != nil || d.IsZero() {
		return nil, err
	}
	return &d, nil
}

// parseClock normalises "HH:MM:SS" to "HH:MM"; malformed values pass through for the core to reject.
func parseClock(s string) model.ClockTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if c, err := model.ParseClock(s); err == nil {
		return c
	}
	return model.ClockTime(s)
}

func (r appointmentRequest) toInput() (scheduling.AppointmentInput, error) {
	var (
		in  scheduling.AppointmentInput
		err error
	)
	if in.PatientID, err = parseID("patient_id", r.PatientID); err != nil {
		return in, err
	}
	if in.DriverID, err = parseID("driver_id", r.DriverID); err != nil {
		return in, err
	}
	if in.VehicleID, err = parseID("vehicle_id", r.VehicleID); err != nil {
		return in, err
	}
	if in.Date, err = parseDate("date", r.Date); err != nil {
		return in, err
	}

	in.DepartureTime = parseClock(r.DepartureTime)
	if ret := parseClock(r.ExpectedReturnTime); ret != "" {
		in.ExpectedReturnTime = &ret
	}
	in.Destination = scheduling.Destination{
		Name:    r.Destination.Name,
		Address: r.Destination.Address,
		City:    r.Destination.City,
		State:   r.Destination.State,
		Phone:   r.Destination.Phone,
	}
	in.AttendanceType = model.AttendanceType(strings.TrimSpace(r.AttendanceType))
	in.Specialty = r.Specialty
	in.Priority = model.Priority(strings.TrimSpace(r.Priority))
	in.HasCompanion = r.HasCompanion
	in.CompanionName = r.CompanionName
	in.CompanionPhone = r.CompanionPhone
	in.CompanionRelationship = r.CompanionRelationship
	in.GenerateReturn = r.GenerateReturn
	in.Notes = r.Notes
	in.Actor = r.Actor
	return in, nil
}

func viewOf(a *model.Appointment) *appointmentView {
	if a == nil {
		return nil
	}
	v := &appointmentView{
		ID:            a.ID.String(),
		PatientID:     a.PatientID.String(),
		DriverID:      a.DriverID.String(),
		VehicleID:     a.VehicleID.String(),
		Date:          model.DayKey(a.Day()),
		DepartureTime: a.DepartureTime.String(),
		Destination: destinationDTO{
			Name:    a.DestinationName,
			Address: a.DestinationAddress,
			City:    a.DestinationCity,
			State:   a.DestinationState,
			Phone:   a.DestinationPhone,
		},
		AttendanceType:        string(a.AttendanceType),
		Specialty:             a.Specialty,
		Priority:              string(a.Priority),
		Status:                string(a.Status),
		IsReturnTrip:          a.IsReturnTrip,
		GenerateReturn:        a.GenerateReturn,
		HasCompanion:          a.HasCompanion,
		CompanionName:         a.CompanionName,
		CompanionPhone:        a.CompanionPhone,
		CompanionRelationship: a.CompanionRelationship,
		ActualDepartureAt:     a.ActualDepartureAt,
		ActualReturnAt:        a.ActualReturnAt,
		OdometerStart:         a.OdometerStart,
		OdometerEnd:           a.OdometerEnd,
		DistanceKm:            a.DistanceKm,
		PatientRating:         a.PatientRating,
		ServiceRating:         a.ServiceRating,
		RatingNotes:           a.RatingNotes,
		ConfirmedBy:           a.ConfirmedBy,
		ConfirmedAt:           a.ConfirmedAt,
		CancelledBy:           a.CancelledBy,
		CancellationReason:    a.CancellationReason,
		CancelledAt:           a.CancelledAt,
		NoShowReason:          a.NoShowReason,
		Notes:                 a.Notes,
		TripNotes:             a.TripNotes,
		CreatedBy:             a.CreatedBy,
	}
	if a.ExpectedReturnTime != nil {
		v.ExpectedReturnTime = a.ExpectedReturnTime.String()
	}
	if a.OriginAppointmentID != nil {
		v.OriginAppointmentID = a.OriginAppointmentID.String()
	}
	return v
}

func viewsOf(in []model.Appointment) []*appointmentView {
	out := make([]*appointmentView, 0, len(in))
	for i := range in {
		out = append(out, viewOf(&in[i]))
	}
	return out
}

func warningsOf(in []scheduling.Warning) []warningView {
	out := make([]warningView, 0, len(in))
	for _, w := range in {
		out = append(out, warningView{Code: string(w.Code), Message: w.Message})
	}
	return out
}

func resultOf(res *scheduling.Result) resultView {
	return resultView{
		OK:          true,
		Appointment: viewOf(res.Appointment),
		Warnings:    warningsOf(res.Warnings),
		ReturnTrip:  viewOf(res.ReturnTrip),
	}
}

func eventsOf(in []model.AppointmentEvent) []eventView {
	out := make([]eventView, 0, len(in))
	for _, e := range in {
		ev := eventView{Type: string(e.EventType), Actor: e.Actor, CreatedAt: e.CreatedAt}
		if len(e.Details) > 0 {
			ev.Details = json.RawMessage(e.Details)
		}
		out = append(out, ev)
	}
	return out
}

func errorViewOf(se *scheduling.Error) errorView {
	v := errorView{
		ErrorKind: string(se.Kind),
		Code:      string(se.Code),
		Message:   se.Message,
		Conflicts: make([]conflictView, 0, len(se.Conflicts)),
	}
	for _, c := range se.Conflicts {
		v.Conflicts = append(v.Conflicts, conflictView{
			AppointmentID: c.AppointmentID.String(),
			ResourceType:  string(c.ResourceType),
			ResourceID:    c.ResourceID.String(),
			Date:          model.DayKey(c.Date),
			Start:         c.Start.String(),
			End:           c.End.String(),
		})
	}
	return v
}


package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/repository"
	"github.com/Leganyst/patient-transport/internal/scheduling"
)

const ServiceName = "transport.scheduling.v1.SchedulingService"

// SchedulingServer is the server API of transport.scheduling.v1.SchedulingService.
// Every method takes and returns a google.protobuf.Struct envelope.
type SchedulingServer interface {
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartTrip(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinishTrip(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkNoShow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestDepartureTimes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPeriodStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReminderDigest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateAppointment", SchedulingServer.CreateAppointment),
		method("EditAppointment", SchedulingServer.EditAppointment),
		method("ConfirmAppointment", SchedulingServer.ConfirmAppointment),
		method("CancelAppointment", SchedulingServer.CancelAppointment),
		method("StartTrip", SchedulingServer.StartTrip),
		method("FinishTrip", SchedulingServer.FinishTrip),
		method("MarkNoShow", SchedulingServer.MarkNoShow),
		method("RateAppointment", SchedulingServer.RateAppointment),
		method("GetAppointment", SchedulingServer.GetAppointment),
		method("ListAppointments", SchedulingServer.ListAppointments),
		method("CheckAvailability", SchedulingServer.CheckAvailability),
		method("SuggestDepartureTimes", SchedulingServer.SuggestDepartureTimes),
		method("GetStatistics", SchedulingServer.GetStatistics),
		method("GetPeriodStatistics", SchedulingServer.GetPeriodStatistics),
		method("GetReminderDigest", SchedulingServer.GetReminderDigest),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport/scheduling/v1/scheduling.proto",
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// SchedulingService adapts the scheduling facade to gRPC.
type SchedulingService struct {
	sched *scheduling.Scheduler
}

func NewSchedulingService(sched *scheduling.Scheduler) *SchedulingService {
	return &SchedulingService{sched: sched}
}

// CreateAppointment validates and stores a new appointment.
func (s *SchedulingService) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r appointmentRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	in, err := r.toInput()
	if err != nil {
		return nil, err
	}
	res, err := s.sched.CreateAppointment(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resultOf(res))
}

// EditAppointment replaces the editable fields of appointment r.ID.
func (s *SchedulingService) EditAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r appointmentRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	id, err := requireID("id", r.ID)
	if err != nil {
		return nil, err
	}
	in, err := r.toInput()
	if err != nil {
		return nil, err
	}
	res, err := s.sched.EditAppointment(ctx, id, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resultOf(res))
}

type lifecycleCall func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error)

// transition decodes a lifecycleRequest and runs one state change.
func (s *SchedulingService) transition(ctx context.Context, req *structpb.Struct, call lifecycleCall) (*structpb.Struct, error) {
	var r lifecycleRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	id, err := requireID("id", r.ID)
	if err != nil {
		return nil, err
	}
	res, err := call(ctx, id, r)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resultOf(res))
}

func (s *SchedulingService) ConfirmAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.Confirm(ctx, id, r.Actor)
	})
}

func (s *SchedulingService) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.Cancel(ctx, id, r.Reason, r.Actor)
	})
}

func (s *SchedulingService) StartTrip(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.StartTrip(ctx, id, r.OdometerStart, r.Actor)
	})
}

func (s *SchedulingService) FinishTrip(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.FinishTrip(ctx, id, r.OdometerEnd, r.Notes, r.Actor)
	})
}

func (s *SchedulingService) MarkNoShow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.MarkNoShow(ctx, id, r.Reason, r.Actor)
	})
}

func (s *SchedulingService) RateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(ctx, req, func(ctx context.Context, id uuid.UUID, r lifecycleRequest) (*scheduling.Result, error) {
		return s.sched.Rate(ctx, id, r.PatientRating, r.ServiceRating, r.Notes, r.Actor)
	})
}

// GetAppointment returns the appointment with its audit trail.
func (s *SchedulingService) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r lifecycleRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	id, err := requireID("id", r.ID)
	if err != nil {
		return nil, err
	}
	a, err := s.sched.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	history, err := s.sched.History(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(struct {
		OK          bool             `json:"ok"`
		Appointment *appointmentView `json:"appointment"`
		History     []eventView      `json:"history"`
	}{true, viewOf(a), eventsOf(history)})
}

func (s *SchedulingService) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r listRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}

	var (
		f   repository.AppointmentFilter
		err error
	)
	for _, st := range r.Statuses {
		value := model.AppointmentStatus(strings.TrimSpace(st))
		if !value.Valid() {
			return nil, invalidArgument("statuses: unknown status %q", st)
		}
		f.Statuses = append(f.Statuses, value)
	}
	if f.PatientID, err = optionalID("patient_id", r.PatientID); err != nil {
		return nil, err
	}
	if f.DriverID, err = optionalID("driver_id", r.DriverID); err != nil {
		return nil, err
	}
	if f.VehicleID, err = optionalID("vehicle_id", r.VehicleID); err != nil {
		return nil, err
	}
	if f.Day, err = optionalDate("date", r.Date); err != nil {
		return nil, err
	}
	if f.From, err = optionalDate("from", r.From); err != nil {
		return nil, err
	}
	if f.To, err = optionalDate("to", r.To); err != nil {
		return nil, err
	}

	page, err := s.sched.List(ctx, f, r.Page, r.PageSize)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(struct {
		OK       bool               `json:"ok"`
		Items    []*appointmentView `json:"items"`
		Page     int                `json:"page"`
		PageSize int                `json:"page_size"`
		Total    int                `json:"total"`
		HasNext  bool               `json:"has_next"`
	}{true, viewsOf(page.Items), page.Page, page.PageSize, page.Total, page.HasNext})
}

// CheckAvailability is a dry run of a create, or of an edit when id is set.
func (s *SchedulingService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r appointmentRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	exclude, err := optionalID("id", r.ID)
	if err != nil {
		return nil, err
	}
	in, err := r.toInput()
	if err != nil {
		return nil, err
	}
	res, err := s.sched.CheckAvailability(ctx, in, exclude)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resultOf(res))
}

func (s *SchedulingService) SuggestDepartureTimes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r suggestRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	driverID, err := requireID("driver_id", r.DriverID)
	if err != nil {
		return nil, err
	}
	vehicleID, err := requireID("vehicle_id", r.VehicleID)
	if err != nil {
		return nil, err
	}
	day, err := parseDate("date", r.Date)
	if err != nil {
		return nil, err
	}
	if day.IsZero() {
		return nil, invalidArgument("date is required")
	}

	times, err := s.sched.SuggestDepartureTimes(ctx, driverID, vehicleID, day, time.Duration(r.DurationMin)*time.Minute)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.String())
	}
	return encode(struct {
		OK             bool     `json:"ok"`
		DepartureTimes []string `json:"departure_times"`
	}{true, out})
}

func (s *SchedulingService) GetStatistics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.sched.Statistics(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(struct {
		OK         bool                   `json:"ok"`
		Statistics *scheduling.Statistics `json:"statistics"`
	}{true, st})
}

func (s *SchedulingService) GetPeriodStatistics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r periodRequest
	if err := decode(req, &r); err != nil {
		return nil, err
	}
	from, err := parseDate("from", r.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("to", r.To)
	if err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() {
		return nil, invalidArgument("from and to are required")
	}

	st, err := s.sched.PeriodStatistics(ctx, from, to)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(struct {
		OK         bool                         `json:"ok"`
		Statistics *scheduling.PeriodStatistics `json:"statistics"`
	}{true, st})
}

func (s *SchedulingService) GetReminderDigest(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	d, err := s.sched.ReminderDigest(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(struct {
		OK        bool               `json:"ok"`
		ToConfirm []*appointmentView `json:"to_confirm"`
		ToRemind  []*appointmentView `json:"to_remind"`
		Late      []*appointmentView `json:"late"`
	}{true, viewsOf(d.ToConfirm), viewsOf(d.ToRemind), viewsOf(d.Late)})
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

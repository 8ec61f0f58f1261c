package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"github.com/Leganyst/patient-transport/internal/calendar"
	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/events"
	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/repository"
)

var tracer = otel.Tracer("patient-transport.internal.scheduling")

// Recorder receives operation outcomes; metrics.SchedulingMetrics implements it.
type Recorder interface {
	ObserveOperation(operation, outcome string, seconds float64)
	ObserveRejection(operation, kind, code string)
	ObserveReturnTrip(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, float64) {}
func (nopRecorder) ObserveRejection(string, string, string)  {}
func (nopRecorder) ObserveReturnTrip(string)                 {}

// Result is what an accepted operation returns.
type Result struct {
	Appointment *model.Appointment
	Warnings    []Warning
	// ReturnTrip is set when finishing a trip created the trip home.
	ReturnTrip *model.Appointment
}

// Scheduler is the single entry point for creating and transitioning appointments.
// Every mutating call runs in one transaction: validation, conflict scan and write
// either all take effect or none do.
type Scheduler struct {
	store     repository.Store
	policy    config.Policy
	clock     Clock
	rules     *RuleEngine
	lifecycle *Lifecycle
	returns   *ReturnTripGenerator
	log       zerolog.Logger
	metrics   Recorder
	publisher events.Publisher
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.metrics = r
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewScheduler(store repository.Store, policy config.Policy, opts ...Option) *Scheduler {
	rules := NewRuleEngine(policy)
	s := &Scheduler{
		store:     store,
		policy:    policy,
		clock:     SystemClock{},
		rules:     rules,
		lifecycle: NewLifecycle(rules),
		returns:   NewReturnTripGenerator(policy),
		log:       zerolog.Nop(),
		metrics:   nopRecorder{},
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Policy() config.Policy {
	return s.policy
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

type opFunc func(ctx context.Context, now time.Time) (*Result, []events.Message, error)

// run wraps an operation with a span, metrics, logging and post-commit event fan-out.
func (s *Scheduler) run(ctx context.Context, op string, id uuid.UUID, fn opFunc) (*Result, error) {
	ctx, span := tracer.Start(ctx, "scheduling."+op)
	defer span.End()
	if id != uuid.Nil {
		span.SetAttributes(attribute.String("transport.appointment_id", id.String()))
	}

	started := time.Now()
	res, msgs, err := fn(ctx, s.clock.Now())
	elapsed := time.Since(started).Seconds()

	if err != nil {
		se := AsError(err)
		span.RecordError(se)
		span.SetStatus(otelcodes.Error, string(se.Kind))
		s.metrics.ObserveOperation(op, "rejected", elapsed)
		s.metrics.ObserveRejection(op, string(se.Kind), string(se.Code))

		ev := s.log.Info()
		if se.Kind == KindPersistence {
			ev = s.log.Error().Err(se.Err)
		}
		ev.Str("operation", op).
			Str("error_kind", string(se.Kind)).
			Str("code", string(se.Code)).
			Str("appointment_id", id.String()).
			Msg(se.Message)
		return nil, se
	}

	if res != nil && res.Appointment != nil {
		span.SetAttributes(
			attribute.String("transport.appointment_id", res.Appointment.ID.String()),
			attribute.String("transport.status", string(res.Appointment.Status)),
		)
	}
	s.metrics.ObserveOperation(op, "ok", elapsed)

	for _, msg := range msgs {
		if perr := s.publisher.Publish(ctx, msg); perr != nil {
			s.log.Warn().Err(perr).
				Str("event_type", string(msg.Type)).
				Str("appointment_id", msg.AppointmentID.String()).
				Msg("event publication failed")
		}
	}
	return res, nil
}

func (s *Scheduler) record(
	ctx context.Context,
	tx repository.Store,
	a *model.Appointment,
	typ model.EventType,
	actor string,
	details map[string]any,
	now time.Time,
) (events.Message, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return events.Message{}, fmt.Errorf("encode event details: %w", err)
	}
	ev := &model.AppointmentEvent{
		AppointmentID: a.ID,
		EventType:     typ,
		Actor:         actor,
		Details:       datatypes.JSON(raw),
		CreatedAt:     now.UTC(),
	}
	if err := tx.Events().Append(ctx, ev); err != nil {
		return events.Message{}, err
	}
	return events.Message{
		Type:          typ,
		AppointmentID: a.ID,
		Status:        a.Status,
		Actor:         actor,
		OccurredAt:    now,
		Details:       details,
	}, nil
}

func lockKeys(appts ...*model.Appointment) []model.ResourceDayLock {
	var keys []model.ResourceDayLock
	for _, a := range appts {
		day := model.DayKey(a.Day())
		keys = append(keys,
			model.ResourceDayLock{ResourceType: model.ResourceDriver, ResourceID: a.DriverID, Day: day},
			model.ResourceDayLock{ResourceType: model.ResourceVehicle, ResourceID: a.VehicleID, Day: day},
			model.ResourceDayLock{ResourceType: model.ResourcePatient, ResourceID: a.PatientID, Day: day},
		)
	}
	return keys
}

func lookupPatient(ctx context.Context, dir Directory, id uuid.UUID) (*model.Patient, error) {
	p, err := dir.GetPatient(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return p, nil
}

func loadForUpdate(ctx context.Context, tx repository.Store, id uuid.UUID) (*model.Appointment, error) {
	a, err := tx.Appointments().GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, CodeAppointmentNotFound, "appointment %s not found", id)
	}
	return a, err
}

func warningDetails(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, string(w.Code))
	}
	return out
}

// CreateAppointment validates and stores a new appointment in status agendado.
func (s *Scheduler) CreateAppointment(ctx context.Context, in AppointmentInput) (*Result, error) {
	return s.run(ctx, "create", uuid.Nil, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		a := &model.Appointment{
			Status:    model.AppointmentStatusScheduled,
			CreatedBy: in.Actor,
		}
		in.applyTo(a)

		if err := s.rules.ValidateFields(a); err != nil {
			return nil, nil, err
		}

		var (
			res  *Result
			msgs []events.Message
		)
		err := s.store.Transaction(ctx, func(tx repository.Store) error {
			patient, err := lookupPatient(ctx, tx.Directory(), a.PatientID)
			if err != nil {
				return err
			}
			s.rules.ApplyDefaults(a, patient, now)
			if err := s.rules.CheckPolicy(a, now, true); err != nil {
				return err
			}

			if err := tx.Locks().Acquire(ctx, lockKeys(a)); err != nil {
				return err
			}
			vr, err := NewValidator(tx.Directory(), tx.Appointments(), s.policy).ValidateAll(ctx, a, nil, now)
			if err != nil {
				return err
			}

			if err := tx.Appointments().Create(ctx, a); err != nil {
				return err
			}
			msg, err := s.record(ctx, tx, a, model.EventTypeAppointmentCreated, in.Actor, map[string]any{
				"date":      model.DayKey(a.Day()),
				"departure": a.DepartureTime,
				"priority":  a.Priority,
				"warnings":  warningDetails(vr.Warnings),
			}, now)
			if err != nil {
				return err
			}

			res = &Result{Appointment: a, Warnings: vr.Warnings}
			msgs = append(msgs, msg)
			return nil
		})
		return res, msgs, err
	})
}

// EditAppointment replaces the editable fields of an agendado or confirmado appointment.
// Lead time is only re-checked when the date or departure time changes.
func (s *Scheduler) EditAppointment(ctx context.Context, id uuid.UUID, in AppointmentInput) (*Result, error) {
	return s.run(ctx, "edit", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		var (
			res  *Result
			msgs []events.Message
		)
		err := s.store.Transaction(ctx, func(tx repository.Store) error {
			existing, err := loadForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := s.lifecycle.CanEdit(existing, now); err != nil {
				return err
			}

			cand := existing.Clone()
			in.applyTo(cand)
			if err := s.rules.ValidateFields(cand); err != nil {
				return err
			}

			patient, err := lookupPatient(ctx, tx.Directory(), cand.PatientID)
			if err != nil {
				return err
			}
			s.rules.ApplyDefaults(cand, patient, now)

			rescheduled := !cand.Day().Equal(existing.Day()) || cand.DepartureTime != existing.DepartureTime
			if err := s.rules.CheckPolicy(cand, now, rescheduled); err != nil {
				return err
			}

			if err := tx.Locks().Acquire(ctx, lockKeys(existing, cand)); err != nil {
				return err
			}
			vr, err := NewValidator(tx.Directory(), tx.Appointments(), s.policy).ValidateAll(ctx, cand, &cand.ID, now)
			if err != nil {
				return err
			}

			if err := tx.Appointments().Save(ctx, cand); err != nil {
				return err
			}
			msg, err := s.record(ctx, tx, cand, model.EventTypeAppointmentUpdated, in.Actor, map[string]any{
				"changed":  changedFields(existing, cand),
				"warnings": warningDetails(vr.Warnings),
			}, now)
			if err != nil {
				return err
			}

			res = &Result{Appointment: cand, Warnings: vr.Warnings}
			msgs = append(msgs, msg)
			return nil
		})
		return res, msgs, err
	})
}

func changedFields(before, after *model.Appointment) []string {
	var changed []string
	check := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	check("patient", before.PatientID != after.PatientID)
	check("driver", before.DriverID != after.DriverID)
	check("vehicle", before.VehicleID != after.VehicleID)
	check("date", !before.Day().Equal(after.Day()))
	check("departure_time", before.DepartureTime != after.DepartureTime)
	check("expected_return_time", clockValue(before.ExpectedReturnTime) != clockValue(after.ExpectedReturnTime))
	check("destination", before.DestinationName != after.DestinationName || before.DestinationAddress != after.DestinationAddress)
	check("attendance_type", before.AttendanceType != after.AttendanceType)
	check("priority", before.Priority != after.Priority)
	check("companion", before.HasCompanion != after.HasCompanion || before.CompanionName != after.CompanionName)
	sort.Strings(changed)
	return changed
}

func clockValue(c *model.ClockTime) model.ClockTime {
	if c == nil {
		return ""
	}
	return *c
}

type mutation func(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) (map[string]any, error)

// transition locks the appointment row, applies a guarded mutation and stores the result.
func (s *Scheduler) transition(
	ctx context.Context,
	now time.Time,
	id uuid.UUID,
	actor string,
	typ model.EventType,
	mutate mutation,
) (*Result, []events.Message, error) {
	var (
		res  *Result
		msgs []events.Message
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		a, err := loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		details, err := mutate(ctx, tx, a, now)
		if err != nil {
			return err
		}
		if err := tx.Appointments().Save(ctx, a); err != nil {
			return err
		}
		msg, err := s.record(ctx, tx, a, typ, actor, details, now)
		if err != nil {
			return err
		}
		res = &Result{Appointment: a}
		msgs = append(msgs, msg)
		return nil
	})
	return res, msgs, err
}

func (s *Scheduler) Confirm(ctx context.Context, id uuid.UUID, actor string) (*Result, error) {
	return s.run(ctx, "confirm", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		return s.transition(ctx, now, id, actor, model.EventTypeAppointmentConfirmed,
			func(_ context.Context, _ repository.Store, a *model.Appointment, now time.Time) (map[string]any, error) {
				if err := s.lifecycle.Confirm(a, actor, now); err != nil {
					return nil, err
				}
				return map[string]any{"confirmed_by": actor}, nil
			})
	})
}

func (s *Scheduler) StartTrip(ctx context.Context, id uuid.UUID, odometerStart *int, actor string) (*Result, error) {
	return s.run(ctx, "start_trip", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		return s.transition(ctx, now, id, actor, model.EventTypeTripStarted,
			func(_ context.Context, _ repository.Store, a *model.Appointment, now time.Time) (map[string]any, error) {
				if err := s.lifecycle.StartTrip(a, odometerStart, now); err != nil {
					return nil, err
				}
				return map[string]any{"odometer_start": odometerStart}, nil
			})
	})
}

// FinishTrip completes the trip, propagates the odometer reading to the vehicle and then,
// in a separate transaction, tries to derive the return trip. A failed return trip only
// adds a warning.
func (s *Scheduler) FinishTrip(ctx context.Context, id uuid.UUID, odometerEnd *int, notes, actor string) (*Result, error) {
	return s.run(ctx, "finish_trip", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		var odoMsg *events.Message
		res, msgs, err := s.transition(ctx, now, id, actor, model.EventTypeTripFinished,
			func(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) (map[string]any, error) {
				if err := s.lifecycle.FinishTrip(a, odometerEnd, notes, now); err != nil {
					return nil, err
				}
				if odometerEnd != nil {
					msg, err := s.propagateOdometer(ctx, tx, a, *odometerEnd, actor, now)
					if err != nil {
						return nil, err
					}
					odoMsg = &msg
				}
				return map[string]any{"odometer_end": odometerEnd, "distance_km": a.DistanceKm}, nil
			})
		if err != nil {
			return nil, nil, err
		}
		if odoMsg != nil {
			msgs = append(msgs, *odoMsg)
		}

		if s.returns.Wants(res.Appointment) {
			ret, warnings, retMsgs := s.generateReturnTrip(ctx, res.Appointment, now)
			res.ReturnTrip = ret
			res.Warnings = append(res.Warnings, warnings...)
			msgs = append(msgs, retMsgs...)
		}
		return res, msgs, nil
	})
}

// propagateOdometer stores the final reading on the vehicle and records it in the
// appointment's history, inside the finish transaction.
func (s *Scheduler) propagateOdometer(ctx context.Context, tx repository.Store, a *model.Appointment, km int, actor string, now time.Time) (events.Message, error) {
	veh, err := tx.Directory().GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repository.ErrNotFound) {
		return events.Message{}, newError(KindIneligible, CodeVehicleIneligible, "vehicle %s not found", a.VehicleID)
	}
	if err != nil {
		return events.Message{}, err
	}
	if km < veh.Odometer {
		return events.Message{}, validationError(CodeInvalidField,
			"final odometer %d is below the current reading %d of vehicle %s", km, veh.Odometer, veh.Plate)
	}
	if err := tx.Directory().UpdateVehicleOdometer(ctx, a.VehicleID, km); err != nil {
		return events.Message{}, err
	}
	return s.record(ctx, tx, a, model.EventTypeVehicleOdometerUpdate, actor, map[string]any{
		"vehicle_id": a.VehicleID.String(),
		"previous":   veh.Odometer,
		"odometer":   km,
	}, now)
}

func (s *Scheduler) generateReturnTrip(ctx context.Context, origin *model.Appointment, now time.Time) (*model.Appointment, []Warning, []events.Message) {
	var (
		created  *model.Appointment
		warnings []Warning
		msgs     []events.Message
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Appointments().FindReturnTrip(ctx, origin.ID)
		if err == nil {
			created = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		patient, err := lookupPatient(ctx, tx.Directory(), origin.PatientID)
		if err != nil {
			return err
		}
		cand, err := s.returns.Build(origin, patient, now)
		if err != nil {
			return err
		}
		if err := s.rules.CheckPolicy(cand, now, false); err != nil {
			return err
		}

		if err := tx.Locks().Acquire(ctx, lockKeys(cand)); err != nil {
			return err
		}
		vr, err := NewValidator(tx.Directory(), tx.Appointments(), s.policy).ValidateAll(ctx, cand, nil, now)
		if err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, cand); err != nil {
			return err
		}
		msg, err := s.record(ctx, tx, cand, model.EventTypeReturnTripCreated, systemActor, map[string]any{
			"origin_appointment_id": origin.ID.String(),
			"date":                  model.DayKey(cand.Day()),
			"departure":             cand.DepartureTime,
		}, now)
		if err != nil {
			return err
		}
		created = cand
		warnings = vr.Warnings
		msgs = append(msgs, msg)
		return nil
	})
	if err != nil {
		se := AsError(err)
		s.metrics.ObserveReturnTrip("skipped")
		s.log.Warn().
			Str("origin_appointment_id", origin.ID.String()).
			Str("error_kind", string(se.Kind)).
			Str("code", string(se.Code)).
			Msg("return trip not created")
		return nil, []Warning{{
			Code:    WarningReturnTripSkipped,
			Message: fmt.Sprintf("return trip not created: %s", se.Message),
		}}, nil
	}
	s.metrics.ObserveReturnTrip("created")
	return created, warnings, msgs
}

func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*Result, error) {
	return s.run(ctx, "cancel", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		return s.transition(ctx, now, id, actor, model.EventTypeAppointmentCancelled,
			func(_ context.Context, _ repository.Store, a *model.Appointment, now time.Time) (map[string]any, error) {
				if err := s.lifecycle.Cancel(a, reason, actor, now); err != nil {
					return nil, err
				}
				return map[string]any{"reason": a.CancellationReason}, nil
			})
	})
}

func (s *Scheduler) MarkNoShow(ctx context.Context, id uuid.UUID, reason, actor string) (*Result, error) {
	return s.run(ctx, "no_show", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		return s.transition(ctx, now, id, actor, model.EventTypeAppointmentNoShow,
			func(_ context.Context, _ repository.Store, a *model.Appointment, _ time.Time) (map[string]any, error) {
				if err := s.lifecycle.MarkNoShow(a, reason); err != nil {
					return nil, err
				}
				return map[string]any{"reason": a.NoShowReason}, nil
			})
	})
}

func (s *Scheduler) Rate(ctx context.Context, id uuid.UUID, patientRating, serviceRating int, notes, actor string) (*Result, error) {
	return s.run(ctx, "rate", id, func(ctx context.Context, now time.Time) (*Result, []events.Message, error) {
		return s.transition(ctx, now, id, actor, model.EventTypeAppointmentRated,
			func(_ context.Context, _ repository.Store, a *model.Appointment, _ time.Time) (map[string]any, error) {
				if err := s.lifecycle.Rate(a, patientRating, serviceRating, notes); err != nil {
					return nil, err
				}
				return map[string]any{"patient_rating": patientRating, "service_rating": serviceRating}, nil
			})
	})
}

func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.store.Appointments().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, CodeAppointmentNotFound, "appointment %s not found", id)
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	return a, nil
}

// List pages appointments ordered by date and departure time.
func (s *Scheduler) List(ctx context.Context, f repository.AppointmentFilter, page, pageSize int) (calendar.Page[model.Appointment], error) {
	page, pageSize = calendar.NormalizePage(page, pageSize)
	items, total, err := s.store.Appointments().List(ctx, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return calendar.Page[model.Appointment]{}, persistenceError(err)
	}
	return calendar.PageFromTotal(items, page, pageSize, total), nil
}

// History returns the audit trail of an appointment.
func (s *Scheduler) History(ctx context.Context, id uuid.UUID) ([]model.AppointmentEvent, error) {
	evs, err := s.store.Events().ListByAppointment(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	return evs, nil
}

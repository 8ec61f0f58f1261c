package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/calendar"
	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/repository"
)

// Directory is the read side of the resource registry.
type Directory interface {
	GetDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
}

// AppointmentLister returns the appointments that still occupy a resource on a date.
type AppointmentLister interface {
	ListNonTerminal(
		ctx context.Context,
		resourceType model.ResourceType,
		resourceID uuid.UUID,
		day time.Time,
		excludeID *uuid.UUID,
	) ([]model.Appointment, error)
}

type WarningCode string

const (
	WarningLicenseExpiring   WarningCode = "DriverLicenseExpiring"
	WarningLicensingExpiring WarningCode = "VehicleLicensingExpiring"
	WarningInsuranceExpiring WarningCode = "VehicleInsuranceExpiring"
	WarningServiceDue        WarningCode = "VehicleServiceDue"
	WarningReturnTripSkipped WarningCode = "ReturnTripSkipped"
)

// Warning is a non-blocking remark attached to an accepted operation.
type Warning struct {
	Code    WarningCode
	Message string
}

// Snapshot is the resource state one validation run saw.
type Snapshot struct {
	Driver  *model.Driver
	Vehicle *model.Vehicle
	Patient *model.Patient
}

type ValidationResult struct {
	Snapshot Snapshot
	Warnings []Warning
}

// passengerCategories may carry patients without the dedicated course.
var passengerCategories = map[string]bool{"D": true, "E": true, "AD": true, "AE": true}

// categoriesByKind lists the licence categories allowed to drive each vehicle kind.
var categoriesByKind = map[model.VehicleKind]map[string]bool{
	model.VehicleKindVan:       {"B": true, "C": true, "D": true, "E": true, "AB": true, "AC": true, "AD": true, "AE": true},
	model.VehicleKindAmbulance: {"B": true, "C": true, "D": true, "E": true, "AB": true, "AC": true, "AD": true, "AE": true},
	model.VehicleKindCar:       {"B": true, "C": true, "D": true, "E": true, "AB": true, "AC": true, "AD": true, "AE": true},
	model.VehicleKindMinibus:   {"D": true, "E": true, "AD": true, "AE": true},
}

// Validator checks a candidate appointment against the resources it names and
// against the appointments already holding those resources.
type Validator struct {
	dir    Directory
	appts  AppointmentLister
	policy config.Policy
}

func NewValidator(dir Directory, appts AppointmentLister, policy config.Policy) *Validator {
	return &Validator{dir: dir, appts: appts, policy: policy}
}

// Load fetches the driver, vehicle and patient. Missing records come back as nil.
func (v *Validator) Load(ctx context.Context, a *model.Appointment) (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Driver, err = v.dir.GetDriver(ctx, a.DriverID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return s, fmt.Errorf("load driver: %w", err)
	}
	if s.Vehicle, err = v.dir.GetVehicle(ctx, a.VehicleID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return s, fmt.Errorf("load vehicle: %w", err)
	}
	if s.Patient, err = v.dir.GetPatient(ctx, a.PatientID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return s, fmt.Errorf("load patient: %w", err)
	}
	return s, nil
}

// ValidateAll runs driver, vehicle, patient and compatibility checks in that order and
// stops at the first failure. excludeID is skipped in every conflict scan.
func (v *Validator) ValidateAll(
	ctx context.Context,
	a *model.Appointment,
	excludeID *uuid.UUID,
	now time.Time,
) (*ValidationResult, error) {
	snap, err := v.Load(ctx, a)
	if err != nil {
		return nil, err
	}

	res := &ValidationResult{Snapshot: snap}

	w, err := v.CheckDriver(ctx, a, snap, excludeID, now)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, w...)

	w, err = v.CheckVehicle(ctx, a, snap, excludeID, now)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, w...)

	if err := v.CheckPatient(ctx, a, snap, excludeID); err != nil {
		return nil, err
	}
	if err := v.CheckCompatibility(snap); err != nil {
		return nil, err
	}
	return res, nil
}

func (v *Validator) CheckDriver(
	ctx context.Context,
	a *model.Appointment,
	snap Snapshot,
	excludeID *uuid.UUID,
	now time.Time,
) ([]Warning, error) {
	d := snap.Driver
	if err := v.driverEligibility(d, snap.Vehicle, a.Day()); err != nil {
		return nil, err
	}

	if err := v.scan(ctx, a, model.ResourceDriver, a.DriverID, excludeID,
		KindBusy, CodeDriverBusy, "driver %s is already scheduled at that time", d.Name); err != nil {
		return nil, err
	}

	var warnings []Warning
	if days := v.daysUntil(now, time.Time(d.LicenseExpiry)); days <= v.policy.ExpiryWarningDays {
		warnings = append(warnings, Warning{
			Code:    WarningLicenseExpiring,
			Message: fmt.Sprintf("driver licence (CNH) of %s expires in %d days", d.Name, days),
		})
	}
	return warnings, nil
}

func (v *Validator) driverEligibility(d *model.Driver, vehicle *model.Vehicle, day time.Time) error {
	ineligible := func(format string, args ...any) error {
		return newError(KindIneligible, CodeDriverIneligible, format, args...)
	}

	switch {
	case d == nil:
		return ineligible("driver not found")
	case !d.Active:
		return ineligible("driver %s is inactive", d.Name)
	case !d.Available:
		return ineligible("driver %s is not available", d.Name)
	case model.CivilDate(time.Time(d.LicenseExpiry)).Before(day):
		return ineligible("driver licence of %s expired on %s", d.Name, time.Time(d.LicenseExpiry).Format(time.DateOnly))
	case !d.HasHealthCertificate:
		return ineligible("driver %s has no valid health certificate", d.Name)
	case !passengerCategories[d.LicenseCategory] && !d.HasPatientTransportCourse:
		return ineligible("driver %s holds category %s without the patient transport course", d.Name, d.LicenseCategory)
	}

	if vehicle != nil {
		allowed, known := categoriesByKind[vehicle.Kind]
		if known && !allowed[d.LicenseCategory] {
			return ineligible("licence category %s of %s does not allow driving a %s", d.LicenseCategory, d.Name, vehicle.Kind)
		}
	}
	return nil
}

func (v *Validator) CheckVehicle(
	ctx context.Context,
	a *model.Appointment,
	snap Snapshot,
	excludeID *uuid.UUID,
	now time.Time,
) ([]Warning, error) {
	veh := snap.Vehicle
	if err := vehicleEligibility(veh, a.Day()); err != nil {
		return nil, err
	}

	if err := v.scan(ctx, a, model.ResourceVehicle, a.VehicleID, excludeID,
		KindBusy, CodeVehicleBusy, "vehicle %s is already scheduled at that time", veh.Plate); err != nil {
		return nil, err
	}

	var warnings []Warning
	if days := v.daysUntil(now, time.Time(veh.LicensingExpiry)); days <= v.policy.ExpiryWarningDays {
		warnings = append(warnings, Warning{
			Code:    WarningLicensingExpiring,
			Message: fmt.Sprintf("licensing of vehicle %s expires in %d days", veh.Plate, days),
		})
	}
	if veh.InsuranceExpiry != nil {
		if days := v.daysUntil(now, time.Time(*veh.InsuranceExpiry)); days <= v.policy.InsuranceWarningDays {
			warnings = append(warnings, Warning{
				Code:    WarningInsuranceExpiring,
				Message: fmt.Sprintf("insurance of vehicle %s expires in %d days", veh.Plate, days),
			})
		}
	}
	if serviceDue(veh, a.Day()) {
		warnings = append(warnings, Warning{
			Code:    WarningServiceDue,
			Message: fmt.Sprintf("vehicle %s is due for service", veh.Plate),
		})
	}
	return warnings, nil
}

func vehicleEligibility(veh *model.Vehicle, day time.Time) error {
	ineligible := func(format string, args ...any) error {
		return newError(KindIneligible, CodeVehicleIneligible, format, args...)
	}

	switch {
	case veh == nil:
		return ineligible("vehicle not found")
	case !veh.Active:
		return ineligible("vehicle %s is inactive", veh.Plate)
	case !veh.Available:
		return ineligible("vehicle %s is not available", veh.Plate)
	case veh.InMaintenance:
		return ineligible("vehicle %s is under maintenance", veh.Plate)
	case model.CivilDate(time.Time(veh.LicensingExpiry)).Before(day):
		return ineligible("licensing of vehicle %s expired", veh.Plate)
	case !veh.InsuranceValid:
		return ineligible("vehicle %s has no valid insurance", veh.Plate)
	case veh.InsuranceExpiry != nil && model.CivilDate(time.Time(*veh.InsuranceExpiry)).Before(day):
		return ineligible("insurance of vehicle %s expired", veh.Plate)
	}
	return nil
}

func serviceDue(veh *model.Vehicle, day time.Time) bool {
	if veh.NextServiceKm != nil && veh.Odometer >= *veh.NextServiceKm {
		return true
	}
	if veh.NextServiceDate != nil && !model.CivilDate(time.Time(*veh.NextServiceDate)).After(day) {
		return true
	}
	return false
}

// CheckPatient scans every appointment of the patient that day, whatever driver or vehicle it uses.
func (v *Validator) CheckPatient(
	ctx context.Context,
	a *model.Appointment,
	snap Snapshot,
	excludeID *uuid.UUID,
) error {
	p := snap.Patient
	if p == nil {
		return newError(KindIneligible, CodePatientIneligible, "patient not found")
	}
	if !p.Active {
		return newError(KindIneligible, CodePatientIneligible, "patient %s is inactive", p.Name)
	}
	return v.scan(ctx, a, model.ResourcePatient, a.PatientID, excludeID,
		KindDoubleBooked, CodePatientDoubleBooked, "patient %s already has a transport at that time", p.Name)
}

func (v *Validator) CheckCompatibility(snap Snapshot) error {
	p, veh := snap.Patient, snap.Vehicle
	if p == nil || veh == nil {
		return nil
	}
	if p.UsesWheelchair && veh.WheelchairCapacity == 0 {
		return newError(KindIncompatible, CodeVehicleNotAccessible,
			"patient %s uses a wheelchair but vehicle %s has no wheelchair place", p.Name, veh.Plate)
	}
	if p.ReducedMobility && !veh.FullyAccessible {
		return newError(KindIncompatible, CodeVehicleNotFullyAccessible,
			"patient %s has reduced mobility but vehicle %s is not fully accessible", p.Name, veh.Plate)
	}
	return nil
}

func (v *Validator) scan(
	ctx context.Context,
	a *model.Appointment,
	rt model.ResourceType,
	resourceID uuid.UUID,
	excludeID *uuid.UUID,
	kind Kind,
	code Code,
	format string,
	args ...any,
) error {
	existing, err := v.appts.ListNonTerminal(ctx, rt, resourceID, a.Day(), excludeID)
	if err != nil {
		return fmt.Errorf("scan %s appointments: %w", rt, err)
	}
	conflicts := findConflicts(a, existing, rt, v.policy.Location, v.policy.ConflictDefault)
	if len(conflicts) == 0 {
		return nil
	}
	first := conflicts[0]
	slot := calendar.TimeRange{
		Start: first.Start.On(first.Date, v.policy.Location),
		End:   first.End.On(first.Date, v.policy.Location),
	}
	e := newError(kind, code, format, args...)
	e.Message += " (" + calendar.FormatSlotForUser(slot, v.policy.Location, true, first.AppointmentID.String()) + ")"
	e.Conflicts = conflicts
	return e
}

// daysUntil counts whole civil days from now to the given date in the policy zone.
func (v *Validator) daysUntil(now, date time.Time) int {
	today := model.CivilDate(now.In(v.policy.Location))
	return int(model.CivilDate(date).Sub(today).Hours() / 24)
}

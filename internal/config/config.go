package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Leganyst/patient-transport/internal/model"
)

type Config struct {
	DB *DBConfig

	GRPCAddr  string
	AdminAddr string

	LogLevel  string
	LogPretty bool

	RedisAddr     string
	RedisPassword string
	RedisStream   string

	Policy Policy
}

func newViper() *viper.Viper {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDBDefaults(v)

	v.SetDefault("CORE_GRPC_ADDR", ":50051")
	v.SetDefault("ADMIN_HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("REDIS_STREAM", "transport:appointments")

	p := DefaultPolicy()
	v.SetDefault("SCHEDULING_TIMEZONE", p.Location.String())
	v.SetDefault("SCHEDULING_OPENING_TIME", string(p.OpeningTime))
	v.SetDefault("SCHEDULING_CLOSING_TIME", string(p.ClosingTime))
	v.SetDefault("SCHEDULING_WORKING_DAYS", "mon,tue,wed,thu,fri")
	v.SetDefault("SCHEDULING_LEAD_TIME_HOURS", int(p.LeadTime/time.Hour))
	v.SetDefault("SCHEDULING_SLOT_INTERVAL_MIN", int(p.SlotInterval/time.Minute))
	v.SetDefault("SCHEDULING_MAX_TRIP_MIN", int(p.MaxTrip/time.Minute))
	v.SetDefault("SCHEDULING_CONFLICT_DEFAULT_MIN", int(p.ConflictDefault/time.Minute))
	v.SetDefault("SCHEDULING_EXPIRY_WARNING_DAYS", p.ExpiryWarningDays)
	v.SetDefault("SCHEDULING_INSURANCE_WARNING_DAYS", p.InsuranceWarningDays)
	v.SetDefault("SCHEDULING_FALLBACK_DURATION_MIN", int(p.FallbackDuration/time.Minute))
	for t, d := range p.Durations {
		v.SetDefault(durationKey(t), int(d/time.Minute))
	}

	return v
}

func durationKey(t model.AttendanceType) string {
	return "SCHEDULING_DURATION_" + strings.ToUpper(string(t))
}

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	v := newViper()

	dbCfg, err := loadDBConfig(v)
	if err != nil {
		return nil, err
	}

	policy, err := loadPolicy(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		DB:            dbCfg,
		GRPCAddr:      v.GetString("CORE_GRPC_ADDR"),
		AdminAddr:     v.GetString("ADMIN_HTTP_ADDR"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogPretty:     v.GetBool("LOG_PRETTY"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisStream:   v.GetString("REDIS_STREAM"),
		Policy:        policy,
	}, nil
}

func loadPolicy(v *viper.Viper) (Policy, error) {
	p := DefaultPolicy()

	loc, err := time.LoadLocation(v.GetString("SCHEDULING_TIMEZONE"))
	if err != nil {
		return Policy{}, fmt.Errorf("SCHEDULING_TIMEZONE: %w", err)
	}
	p.Location = loc

	if p.OpeningTime, err = model.ParseClock(v.GetString("SCHEDULING_OPENING_TIME")); err != nil {
		return Policy{}, fmt.Errorf("SCHEDULING_OPENING_TIME: %w", err)
	}
	if p.ClosingTime, err = model.ParseClock(v.GetString("SCHEDULING_CLOSING_TIME")); err != nil {
		return Policy{}, fmt.Errorf("SCHEDULING_CLOSING_TIME: %w", err)
	}
	if p.WorkingDays, err = ParseWorkingDays(v.GetString("SCHEDULING_WORKING_DAYS")); err != nil {
		return Policy{}, fmt.Errorf("SCHEDULING_WORKING_DAYS: %w", err)
	}

	p.LeadTime = time.Duration(v.GetInt("SCHEDULING_LEAD_TIME_HOURS")) * time.Hour
	p.SlotInterval = time.Duration(v.GetInt("SCHEDULING_SLOT_INTERVAL_MIN")) * time.Minute
	p.MaxTrip = time.Duration(v.GetInt("SCHEDULING_MAX_TRIP_MIN")) * time.Minute
	p.ConflictDefault = time.Duration(v.GetInt("SCHEDULING_CONFLICT_DEFAULT_MIN")) * time.Minute
	p.ExpiryWarningDays = v.GetInt("SCHEDULING_EXPIRY_WARNING_DAYS")
	p.InsuranceWarningDays = v.GetInt("SCHEDULING_INSURANCE_WARNING_DAYS")
	p.FallbackDuration = time.Duration(v.GetInt("SCHEDULING_FALLBACK_DURATION_MIN")) * time.Minute

	for _, t := range model.AttendanceTypes {
		p.Durations[t] = time.Duration(v.GetInt(durationKey(t))) * time.Minute
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

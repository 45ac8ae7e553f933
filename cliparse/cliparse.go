package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/lifecycle"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/scheduler"
)

// Runoff deadline policies
const (
	PolicyWindow = "window"
	PolicyWeekly = "weekly"
)

type Config struct {
	Port         int      `yaml:"port"`
	DatabaseURL  string   `yaml:"database_url"`
	DatabaseType string   `yaml:"database_type"`
	AdminKeySalt string   `yaml:"admin_key_salt"`
	AdminIDs     []string `yaml:"admin_ids"`
	WebhookURL   string   `yaml:"webhook_url"`
	Timezone     string   `yaml:"timezone"`

	Schedule ScheduleConfig `yaml:"schedule"`
	Runoff   RunoffConfig   `yaml:"runoff"`
	Limits   LimitsConfig   `yaml:"limits"`

	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`
}

// ScheduleConfig holds the weekly trigger times as weekday names and HH:MM
// in Timezone.
type ScheduleConfig struct {
	OpenDay      string `yaml:"open_day"`
	OpenTime     string `yaml:"open_time"`
	CloseDay     string `yaml:"close_day"`
	CloseTime    string `yaml:"close_time"`
	ReminderDay  string `yaml:"reminder_day"`
	ReminderTime string `yaml:"reminder_time"`
}

type RunoffConfig struct {
	Policy        string `yaml:"policy"`
	WindowMinutes int    `yaml:"window_minutes"`
	Day           string `yaml:"day"`
	Time          string `yaml:"time"`
}

type LimitsConfig struct {
	MaxCandidates             int `yaml:"max_candidates"`
	CarryOverCount            int `yaml:"carry_over_count"`
	NominationsPerParticipant int `yaml:"nominations_per_participant"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Port:         3318,
		DatabaseType: "sqlite",
		Timezone:     "America/Los_Angeles",
		Schedule: ScheduleConfig{
			OpenDay:      "tuesday",
			OpenTime:     "09:00",
			CloseDay:     "friday",
			CloseTime:    "09:00",
			ReminderDay:  "thursday",
			ReminderTime: "18:00",
		},
		Runoff: RunoffConfig{
			Policy:        PolicyWindow,
			WindowMinutes: 120,
			Day:           "friday",
			Time:          "17:00",
		},
		Limits: LimitsConfig{
			MaxCandidates:             10,
			CarryOverCount:            5,
			NominationsPerParticipant: 1,
		},
		EnvFile: ".env",
	}
}

func newFlagSet(cfg *Config) *pflag.FlagSet {
	flags := pflag.NewFlagSet("gamenight", pflag.ContinueOnError)

	flags.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file")
	flags.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "dotenv file loaded before reading the environment")

	// Network and storage
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	flags.StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "Database URL")
	flags.StringVarP(&cfg.DatabaseType, "database-type", "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.AdminKeySalt, "admin-salt", cfg.AdminKeySalt, "Admin key salt (prefer env)")
	flags.StringSliceVar(&cfg.AdminIDs, "admin-ids", cfg.AdminIDs, "Participant IDs allowed to run admin actions")
	flags.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "Webhook receiving cycle events")

	// Schedule
	flags.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA time zone for the schedule")
	flags.StringVar(&cfg.Schedule.OpenDay, "open-day", cfg.Schedule.OpenDay, "Weekday voting opens")
	flags.StringVar(&cfg.Schedule.OpenTime, "open-time", cfg.Schedule.OpenTime, "Time voting opens (HH:MM)")
	flags.StringVar(&cfg.Schedule.CloseDay, "close-day", cfg.Schedule.CloseDay, "Weekday voting closes")
	flags.StringVar(&cfg.Schedule.CloseTime, "close-time", cfg.Schedule.CloseTime, "Time voting closes (HH:MM)")
	flags.StringVar(&cfg.Schedule.ReminderDay, "reminder-day", cfg.Schedule.ReminderDay, "Weekday reminders go out")
	flags.StringVar(&cfg.Schedule.ReminderTime, "reminder-time", cfg.Schedule.ReminderTime, "Time reminders go out (HH:MM)")

	// Runoff
	flags.StringVar(&cfg.Runoff.Policy, "runoff-policy", cfg.Runoff.Policy, "Runoff deadline policy (window or weekly)")
	flags.IntVar(&cfg.Runoff.WindowMinutes, "runoff-minutes", cfg.Runoff.WindowMinutes, "Runoff round length for the window policy")
	flags.StringVar(&cfg.Runoff.Day, "runoff-day", cfg.Runoff.Day, "Weekday runoff rounds close for the weekly policy")
	flags.StringVar(&cfg.Runoff.Time, "runoff-time", cfg.Runoff.Time, "Time runoff rounds close for the weekly policy (HH:MM)")

	// Limits
	flags.IntVar(&cfg.Limits.MaxCandidates, "max-candidates", cfg.Limits.MaxCandidates, "Ballot capacity")
	flags.IntVar(&cfg.Limits.CarryOverCount, "carry-over", cfg.Limits.CarryOverCount, "Top finishers carried into the next cycle")
	flags.IntVar(&cfg.Limits.NominationsPerParticipant, "max-nominations", cfg.Limits.NominationsPerParticipant, "Pending nominations allowed per participant")

	return flags
}

// ParseFlags builds the configuration. Precedence, highest first: flags,
// environment (including the dotenv file), YAML file, defaults.
func ParseFlags(args []string) (Config, error) {
	// First pass only locates the config and dotenv files.
	probe := Defaults()
	if err := newFlagSet(&probe).Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(probe.EnvFile); err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	cfg.ConfigFile = probe.ConfigFile
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = os.Getenv("GAMENIGHT_CONFIG")
	}
	if cfg.ConfigFile != "" {
		if err := loadYAML(cfg.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	// Second pass lays the flags over everything else.
	if err := newFlagSet(&cfg).Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AdminIDs = cleanList(cfg.AdminIDs)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == Defaults().EnvFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_URL":    &cfg.DatabaseURL,
		"DATABASE_TYPE":   &cfg.DatabaseType,
		"ADMIN_KEY_SALT":  &cfg.AdminKeySalt,
		"WEBHOOK_URL":     &cfg.WebhookURL,
		"TIMEZONE":        &cfg.Timezone,
		"VOTE_OPEN_DAY":   &cfg.Schedule.OpenDay,
		"VOTE_OPEN_TIME":  &cfg.Schedule.OpenTime,
		"VOTE_CLOSE_DAY":  &cfg.Schedule.CloseDay,
		"VOTE_CLOSE_TIME": &cfg.Schedule.CloseTime,
		"REMINDER_DAY":    &cfg.Schedule.ReminderDay,
		"REMINDER_TIME":   &cfg.Schedule.ReminderTime,
		"RUNOFF_POLICY":   &cfg.Runoff.Policy,
		"RUNOFF_DAY":      &cfg.Runoff.Day,
		"RUNOFF_TIME":     &cfg.Runoff.Time,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":                       &cfg.Port,
		"RUNOFF_DURATION_MINUTES":    &cfg.Runoff.WindowMinutes,
		"MAX_CANDIDATES":             &cfg.Limits.MaxCandidates,
		"CARRY_OVER_COUNT":           &cfg.Limits.CarryOverCount,
		"MAX_NOMINATIONS_PER_PERSON": &cfg.Limits.NominationsPerParticipant,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s env variable: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("ADMIN_IDS"); v != "" {
		cfg.AdminIDs = strings.Split(v, ",")
	}
	return nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks required values and that the schedule parses.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	// Secrets - MUST be provided
	if c.AdminKeySalt == "" {
		return errors.New("ADMIN_KEY_SALT required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Limits.MaxCandidates <= 0 {
		return errors.New("max candidates must be positive")
	}
	if c.Limits.CarryOverCount < 0 {
		return errors.New("carry-over count must not be negative")
	}
	if c.Limits.NominationsPerParticipant <= 0 {
		return errors.New("nominations per participant must be positive")
	}
	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}
	if _, err := c.DeadlinePolicy(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SchedulerConfig resolves the weekly triggers.
func (c Config) SchedulerConfig() (scheduler.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	open, err := clock.ParseWeekly(c.Schedule.OpenDay, c.Schedule.OpenTime, loc)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("open schedule: %w", err)
	}
	closing, err := clock.ParseWeekly(c.Schedule.CloseDay, c.Schedule.CloseTime, loc)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("close schedule: %w", err)
	}
	reminder, err := clock.ParseWeekly(c.Schedule.ReminderDay, c.Schedule.ReminderTime, loc)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("reminder schedule: %w", err)
	}
	return scheduler.Config{Open: open, Close: closing, Reminder: reminder}, nil
}

// DeadlinePolicy resolves how runoff rounds are timed.
func (c Config) DeadlinePolicy() (runoff.DeadlinePolicy, error) {
	switch strings.ToLower(c.Runoff.Policy) {
	case PolicyWindow, "":
		if c.Runoff.WindowMinutes <= 0 {
			return nil, errors.New("runoff window must be positive")
		}
		return runoff.Window(time.Duration(c.Runoff.WindowMinutes) * time.Minute), nil
	case PolicyWeekly:
		loc, err := c.Location()
		if err != nil {
			return nil, err
		}
		w, err := clock.ParseWeekly(c.Runoff.Day, c.Runoff.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("runoff schedule: %w", err)
		}
		return runoff.WeeklyDeadline(w), nil
	default:
		return nil, fmt.Errorf("unknown runoff policy %q", c.Runoff.Policy)
	}
}

// LifecycleConfig returns the ballot limits and admin list.
func (c Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		MaxCandidates:  c.Limits.MaxCandidates,
		CarryOverCount: c.Limits.CarryOverCount,
		AdminIDs:       c.AdminIDs,
	}
}

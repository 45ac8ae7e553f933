// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/gamenight/runoff"
)

// clearEnv blanks every variable ParseFlags reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "DATABASE_TYPE", "ADMIN_KEY_SALT", "ADMIN_IDS",
		"WEBHOOK_URL", "TIMEZONE", "VOTE_OPEN_DAY", "VOTE_OPEN_TIME",
		"VOTE_CLOSE_DAY", "VOTE_CLOSE_TIME", "REMINDER_DAY", "REMINDER_TIME",
		"RUNOFF_POLICY", "RUNOFF_DURATION_MINUTES", "RUNOFF_DAY", "RUNOFF_TIME",
		"MAX_CANDIDATES", "CARRY_OVER_COUNT", "MAX_NOMINATIONS_PER_PERSON",
		"GAMENIGHT_CONFIG",
	} {
		t.Setenv(key, "")
	}
}

func TestParseFlags_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("ADMIN_KEY_SALT", "test-salt")
	t.Setenv("ADMIN_IDS", "alice, bob,,")
	t.Setenv("MAX_CANDIDATES", "12")

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "file:test.db", cfg.DatabaseURL)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, []string{"alice", "bob"}, cfg.AdminIDs)
	assert.Equal(t, 12, cfg.Limits.MaxCandidates)
	assert.Equal(t, 5, cfg.Limits.CarryOverCount)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "--admin-salt", "s1", "--admin-ids", "carol"})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "CLI should override env")
	assert.Equal(t, []string{"carol"}, cfg.AdminIDs)
}

func TestParseFlags_InvalidPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-port")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("ADMIN_KEY_SALT", "s")

	_, err := ParseFlags([]string{})
	assert.Error(t, err)
}

func TestParseFlags_RequiredValues(t *testing.T) {
	clearEnv(t)

	_, err := ParseFlags([]string{"--admin-salt", "s"})
	assert.ErrorContains(t, err, "database URL required")

	_, err = ParseFlags([]string{"-d", "file:test.db"})
	assert.ErrorContains(t, err, "ADMIN_KEY_SALT")
}

func TestParseFlags_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "gamenight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 4000
database_url: from-yaml.db
admin_key_salt: yaml-salt
timezone: UTC
schedule:
  open_day: monday
  open_time: "08:30"
runoff:
  policy: weekly
  day: saturday
  time: "12:00"
limits:
  carry_over_count: 3
`), 0o600))

	// Env beats YAML, flags beat env.
	t.Setenv("PORT", "5000")
	cfg, err := ParseFlags([]string{"--config", path, "--carry-over", "2"})
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "from-yaml.db", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.Limits.CarryOverCount)
	assert.Equal(t, 10, cfg.Limits.MaxCandidates, "unset YAML keys keep defaults")

	sched, err := cfg.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, sched.Open.Day)
	assert.Equal(t, 8, sched.Open.Hour)
	assert.Equal(t, 30, sched.Open.Minute)
	assert.Equal(t, time.Friday, sched.Close.Day)

	policy, err := cfg.DeadlinePolicy()
	require.NoError(t, err)
	assert.IsType(t, runoff.WeeklyDeadline{}, policy)

	// Wednesday noon UTC rolls to Saturday noon.
	from := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), policy.Deadline(from))
}

func TestParseFlags_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("ADMIN_KEY_SALT")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=dotenv.db\nADMIN_KEY_SALT=dotenv-salt\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("ADMIN_KEY_SALT")
	})

	cfg, err := ParseFlags([]string{"--env-file", path})
	require.NoError(t, err)
	assert.Equal(t, "dotenv.db", cfg.DatabaseURL)
	assert.Equal(t, "dotenv-salt", cfg.AdminKeySalt)
}

func TestParseFlags_MissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := ParseFlags([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "-d", "x", "--admin-salt", "s"})
	assert.Error(t, err)
}

func TestDeadlinePolicy_Window(t *testing.T) {
	cfg := Defaults()
	policy, err := cfg.DeadlinePolicy()
	require.NoError(t, err)
	assert.Equal(t, runoff.Window(120*time.Minute), policy)

	cfg.Runoff.Policy = "hourly"
	_, err = cfg.DeadlinePolicy()
	assert.Error(t, err)

	cfg.Runoff.Policy = PolicyWindow
	cfg.Runoff.WindowMinutes = 0
	_, err = cfg.DeadlinePolicy()
	assert.Error(t, err)
}

func TestValidate_BadSchedule(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "x"
	cfg.AdminKeySalt = "s"
	require.NoError(t, cfg.Validate())

	cfg.Schedule.OpenDay = "someday"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.DatabaseURL = "x"
	cfg.AdminKeySalt = "s"
	cfg.Schedule.CloseTime = "25:00"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.DatabaseURL = "x"
	cfg.AdminKeySalt = "s"
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}

func TestLifecycleConfig(t *testing.T) {
	cfg := Defaults()
	cfg.AdminIDs = []string{"alice"}
	lc := cfg.LifecycleConfig()
	assert.Equal(t, 10, lc.MaxCandidates)
	assert.Equal(t, 5, lc.CarryOverCount)
	assert.Equal(t, []string{"alice"}, lc.AdminIDs)
}

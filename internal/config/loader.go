package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// FileEnv names the optional YAML file loaded before the environment.
const FileEnv = "RESERVATIONS_CONFIG"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort     int
	StoreBackend string
	RedisURL     string
	SQLiteDSN    string

	TimeZoneName string
	TimeZone     *time.Location
	RoomName     string
	RoomLocation string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleCalendarID   string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	CalendarSyncTimeout time.Duration
	RealtimeEnabled     bool
	LogLevel            string
}

// GoogleConfigured reports whether an OAuth client is available. Calendar
// sync and sign in are disabled without one.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Error lists every missing or invalid variable found by Load.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required variables: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid values: "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

func (e *Error) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// Load parses configuration values from the current process environment.
// The YAML file named by RESERVATIONS_CONFIG, if any, is read first.
func Load() (Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit YAML file. An empty path reads the
// environment only.
//
// Top level keys of the file are read as variable names and used wherever
// the environment leaves a value unset. Every problem is collected before
// LoadFile returns a *Error.
func LoadFile(path string) (Config, error) {
	file := map[string]string{}
	if path = strings.TrimSpace(path); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = loaded
	}

	return load(func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(file[key])
	})
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

func load(get func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:            3000,
		StoreBackend:        BackendMemory,
		SQLiteDSN:           "file:reservations.db",
		TimeZoneName:        "America/Los_Angeles",
		RoomName:            "Film Room",
		RoomLocation:        "Room 5 / The Film Room",
		GoogleRedirectURI:   "http://localhost:3000/auth/google/callback",
		GoogleCalendarID:    "primary",
		SessionTTL:          24 * time.Hour,
		CalendarSyncTimeout: 10 * time.Second,
		RealtimeEnabled:     true,
		LogLevel:            "info",
	}
	problems := &Error{}

	if value := get("PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			problems.Invalid = append(problems.Invalid, "PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := strings.ToLower(get("STORE_BACKEND")); value != "" {
		switch value {
		case BackendMemory, BackendRedis, BackendSQLite:
			cfg.StoreBackend = value
		default:
			problems.Invalid = append(problems.Invalid, "STORE_BACKEND")
		}
	}

	cfg.RedisURL = get("REDIS_URL")
	if cfg.StoreBackend == BackendRedis {
		if cfg.RedisURL == "" {
			problems.Missing = append(problems.Missing, "REDIS_URL")
		} else if u, err := url.Parse(cfg.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			problems.Invalid = append(problems.Invalid, "REDIS_URL")
		}
	}

	if value := get("SQLITE_DSN"); value != "" {
		cfg.SQLiteDSN = value
	}

	if value := get("TIMEZONE"); value != "" {
		cfg.TimeZoneName = value
	}
	if loc, err := time.LoadLocation(cfg.TimeZoneName); err != nil {
		problems.Invalid = append(problems.Invalid, "TIMEZONE")
	} else {
		cfg.TimeZone = loc
	}

	if value := get("ROOM_NAME"); value != "" {
		cfg.RoomName = value
	}
	if value := get("ROOM_LOCATION"); value != "" {
		cfg.RoomLocation = value
	}

	cfg.GoogleClientID = get("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = get("GOOGLE_CLIENT_SECRET")
	if value := get("GOOGLE_REDIRECT_URI"); value != "" {
		if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
			problems.Invalid = append(problems.Invalid, "GOOGLE_REDIRECT_URI")
		} else {
			cfg.GoogleRedirectURI = value
		}
	}
	if value := get("GOOGLE_CALENDAR_ID"); value != "" {
		cfg.GoogleCalendarID = value
	}

	if secret := get("SESSION_SECRET"); secret == "" {
		problems.Missing = append(problems.Missing, "SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	parseDuration(get, "SESSION_TTL", &cfg.SessionTTL, problems)
	parseDuration(get, "CALENDAR_SYNC_TIMEOUT", &cfg.CalendarSyncTimeout, problems)
	parseBool(get, "REALTIME_ENABLED", &cfg.RealtimeEnabled, problems)
	parseBool(get, "COOKIE_SECURE", &cfg.CookieSecure, problems)

	if value := strings.ToLower(get("LOG_LEVEL")); value != "" {
		switch value {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = value
		default:
			problems.Invalid = append(problems.Invalid, "LOG_LEVEL")
		}
	}

	if !problems.empty() {
		return Config{}, problems
	}
	return cfg, nil
}

func parseDuration(get func(string) string, key string, dst *time.Duration, problems *Error) {
	value := get(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		problems.Invalid = append(problems.Invalid, key)
		return
	}
	*dst = d
}

func parseBool(get func(string) string, key string, dst *bool, problems *Error) {
	value := get(key)
	if value == "" {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		problems.Invalid = append(problems.Invalid, key)
		return
	}
	*dst = b
}

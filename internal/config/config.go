package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	FacesDir       string
	AttendanceFile string
	Tolerance      float64
	FrameScale     int
	FrameInterval  time.Duration
	Location       *time.Location
	Extractor      ExtractorConfig
	Camera         CameraConfig
	Ledger         LedgerConfig
	Database       DatabaseConfig
	Web            WebConfig
	Log            LogConfig
}

type ExtractorConfig struct {
	URL     string        // face embedding server, defaults to http://localhost:8000
	Timeout time.Duration // per request timeout
}

type CameraConfig struct {
	URL string // HTTP snapshot endpoint returning one JPEG/PNG frame per GET
	Dir string // directory of frames replayed in name order (used when URL is empty)
}

// Configured reports whether any camera source is set up.
func (c *CameraConfig) Configured() bool {
	return c.URL != "" || c.Dir != ""
}

type LedgerConfig struct {
	Backend string // csv, postgres or mysql
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MySQLDSN     string // MySQL/MariaDB DSN (e.g., attendance:secret@tcp(mariadb:3306)/attendance)
	MaxOpenConns int
	MaxIdleConns int
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string   // bearer token required by the API; empty disables auth
	AllowedOrigins []string // CORS origins in addition to localhost
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

// defaults mirrors defaults.yaml.
type defaults struct {
	FacesDir       string  `yaml:"faces_dir"`
	AttendanceFile string  `yaml:"attendance_file"`
	Tolerance      float64 `yaml:"match_tolerance"`
	FrameScale     int     `yaml:"frame_scale"`
	FrameInterval  string  `yaml:"frame_interval"`
	Extractor      struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"extractor"`
	Ledger struct {
		Backend string `yaml:"backend"`
	} `yaml:"ledger"`
	Database struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

// envString reads an environment variable, returning defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration (e.g. 250ms).
// Negative or unparsable values fall back to the default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// envLocation resolves the TIMEZONE variable. Unknown zones fall back to local time.
func envLocation(key string) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load() *Config {
	d := loadDefaults()

	return &Config{
		FacesDir:       envString("FACES_DIR", d.FacesDir),
		AttendanceFile: envString("ATTENDANCE_FILE", d.AttendanceFile),
		Tolerance:      envFloat("MATCH_TOLERANCE", d.Tolerance),
		FrameScale:     envInt("FRAME_SCALE", d.FrameScale),
		FrameInterval:  envDuration("FRAME_INTERVAL", parseDuration(d.FrameInterval)),
		Location:       envLocation("TIMEZONE"),
		Extractor: ExtractorConfig{
			URL:     envString("EXTRACTOR_URL", d.Extractor.URL),
			Timeout: envDuration("EXTRACTOR_TIMEOUT", parseDuration(d.Extractor.Timeout)),
		},
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
			Dir: os.Getenv("CAMERA_DIR"),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(envString("LEDGER_BACKEND", d.Ledger.Backend)),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MySQLDSN:     os.Getenv("MYSQL_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", d.Log.Level)),
			Format: strings.ToLower(envString("LOG_FORMAT", d.Log.Format)),
		},
	}
}

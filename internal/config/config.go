package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment. A `.env`
// file in the working directory is loaded first when present.
type Config struct {
	DBURL    string
	HTTPAddr string
	BaseURL  string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string

	DevMode bool

	AssetsDir    string
	TeamIDPrefix string
	MaxTeamSize  int
}

func FromEnv() (Config, error) {
	// Best effort: absence of a .env file is not an error.
	_ = godotenv.Load()

	var c Config
	c.DBURL = strings.TrimSpace(os.Getenv("DB_URL"))

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	c.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/")
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}

	c.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTPPort = intEnv("SMTP_PORT", 587)
	c.SMTPUser = strings.TrimSpace(os.Getenv("SMTP_USER"))
	c.SMTPPass = os.Getenv("SMTP_PASS")

	c.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	c.AdminUsername = strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	c.AdminPasswordHash = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))

	c.DevMode = boolEnv("DEV_MODE")

	c.AssetsDir = strings.TrimSpace(os.Getenv("ASSETS_DIR"))
	if c.AssetsDir == "" {
		c.AssetsDir = "assets"
	}

	c.TeamIDPrefix = strings.TrimSpace(os.Getenv("TEAM_ID_PREFIX"))
	if c.TeamIDPrefix == "" {
		c.TeamIDPrefix = "HACK2026"
	}

	c.MaxTeamSize = intEnv("MAX_TEAM_SIZE", 50)

	if c.DBURL == "" {
		return c, fmt.Errorf("DB_URL is empty")
	}
	if c.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET is empty")
	}

	return c, nil
}

// SMTPConfigured reports whether the mailer has enough to attempt delivery.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func boolEnv(key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return v
}

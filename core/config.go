package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// award reissue policies
const (
	ReissueOverwrite = "overwrite"
	ReissueReject    = "reject"
)

type Config struct {
	AppName         string
	Env             string // DEV (local; default), TEST, QA, PROD
	Build           string
	Debug           bool
	TestMode        bool
	SecretKey       string
	FrontendBaseURL string
	DefaultFromName string
	DefaultFromAddr string
	RollbarToken    string
	SendgridApiKey  string
	Server          serverConfig
	Database        databaseConfig
	Redis           redisConfig
	Scoreboard      scoreboardConfig
	Awards          awardsConfig
	Leaderboard     leaderboardConfig
}

type serverConfig struct {
	Address            string
	Host               string
	DebugHost          string
	ShutdownTimeout    time.Duration
	JWTExpirationDelta time.Duration
	DisableReqLogs     bool
}

type databaseConfig struct {
	Engine        string // postgres | memory
	Host          string
	Port          string
	Name          string
	User          string
	Password      string
	AdminUser     string
	AdminPassword string
	DisableTLS    bool
}

func (dbc databaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

type redisConfig struct {
	URL string
}

type scoreboardConfig struct {
	Size int
}

type awardsConfig struct {
	ReissuePolicy       string
	StrictActivityMatch bool
	CodeAttempts        int
}

type leaderboardConfig struct {
	Size int
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.DefaultFromName, Address: conf.DefaultFromAddr}
}

// NewConfig reads the configuration from the environment, and from `config/.env.<env>` when present.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("app_name", "Pensamiento")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("secret_key", "n3q!8x7%ttw+0c@l(6kzk5$u2=j^c*m4v#r9b)gq_2y&s1a0pd")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("default_from_name", "Pensamiento Computacional")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("server_jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server_disable_request_logs", false)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "pensamiento")
	v.SetDefault("database_user", "pensamiento")
	v.SetDefault("database_password", "pensamiento")
	v.SetDefault("database_admin_user", "")
	v.SetDefault("database_admin_password", "")
	v.SetDefault("database_disable_tls", true)

	v.SetDefault("redis_url", "")
	v.SetDefault("scoreboard_size", 50)

	v.SetDefault("awards_reissue_policy", ReissueOverwrite)
	v.SetDefault("awards_strict_activity_match", false)
	v.SetDefault("awards_code_attempts", 10)

	v.SetDefault("leaderboard_size", 5)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:         v.GetString("app_name"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: v.GetString("frontend_base_url"),
		DefaultFromName: v.GetString("default_from_name"),
		DefaultFromAddr: v.GetString("default_from_email"),
		RollbarToken:    v.GetString("rollbar_token"),
		SendgridApiKey:  v.GetString("sendgrid_api_key"),
		Server: serverConfig{
			Address:            v.GetString("server_address"),
			Host:               v.GetString("server_host"),
			DebugHost:          v.GetString("server_debug_host"),
			ShutdownTimeout:    v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta: v.GetDuration("server_jwt_expiration_delta"),
			DisableReqLogs:     v.GetBool("server_disable_request_logs"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Redis:      redisConfig{URL: v.GetString("redis_url")},
		Scoreboard: scoreboardConfig{Size: v.GetInt("scoreboard_size")},
		Awards: awardsConfig{
			ReissuePolicy:       strings.ToLower(v.GetString("awards_reissue_policy")),
			StrictActivityMatch: v.GetBool("awards_strict_activity_match"),
			CodeAttempts:        v.GetInt("awards_code_attempts"),
		},
		Leaderboard: leaderboardConfig{Size: v.GetInt("leaderboard_size")},
	}
	if conf.Awards.ReissuePolicy != ReissueReject {
		conf.Awards.ReissuePolicy = ReissueOverwrite
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: no external services, in-memory storage.
func NewTestConfig() *Config {
	return &Config{
		AppName:         "Pensamiento",
		Env:             "TEST",
		Build:           "test",
		Debug:           false,
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:5173",
		DefaultFromName: "Pensamiento Computacional",
		DefaultFromAddr: "noreply@localhost",
		Server: serverConfig{
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database:    databaseConfig{Engine: "memory"},
		Scoreboard:  scoreboardConfig{Size: 50},
		Awards:      awardsConfig{ReissuePolicy: ReissueOverwrite, CodeAttempts: 10},
		Leaderboard: leaderboardConfig{Size: 5},
	}
}

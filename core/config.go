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

type Config struct {
	Env      string
	AppName  string
	Build    string
	Debug    bool
	TestMode bool
	WorkDir  string

	SecretKey        string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	SendgridApiKey   string
	RollbarToken     string

	Server struct {
		Host               string
		Addr               string
		DebugHost          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	Reminder struct {
		// InactivityThreshold is how long a learner must be inactive before
		// they qualify for a stalled-learner reminder.
		InactivityThreshold time.Duration
		// CronSecret authenticates the external cron trigger. The cron
		// endpoint fails closed when it is empty.
		CronSecret string
		// MaxConcurrentSends bounds the dispatch worker pool.
		MaxConcurrentSends int
		// ScheduleInterval enables the in-process scheduler when > 0.
		ScheduleInterval time.Duration
	}
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "h2x$7y=dz&u(oqw5-er)enb+5c2(#yg4h^$cegm2emy!x)#*")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("reminder.inactivityThreshold", 48*time.Hour)
	v.SetDefault("reminder.cronSecret", "")
	v.SetDefault("reminder.maxConcurrentSends", 8)
	v.SetDefault("reminder.scheduleInterval", time.Duration(0))

	conf := &Config{
		Env:     os.Getenv("ENV"), // DEV (local; default), TEST, QA, PROD
		WorkDir: Getwd(),
	}
	switch conf.Env {
	case "":
		conf.Env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(conf.Env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(conf.WorkDir, "config", ".env."+strings.ToLower(conf.Env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf.AppName = v.GetString("appName")
	conf.Build = v.GetString("build")
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.SecretKey = v.GetString("secretKey")
	conf.FrontendBaseURL = v.GetString("frontendBaseURL")
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}
	conf.SendgridApiKey = v.GetString("sendgridApiKey")
	conf.RollbarToken = v.GetString("rollbarToken")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Addr = v.GetString("server.addr")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Reminder.InactivityThreshold = v.GetDuration("reminder.inactivityThreshold")
	conf.Reminder.CronSecret = v.GetString("reminder.cronSecret")
	conf.Reminder.MaxConcurrentSends = v.GetInt("reminder.maxConcurrentSends")
	conf.Reminder.ScheduleInterval = v.GetDuration("reminder.scheduleInterval")

	return conf
}

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

const (
	MB = 1 << 20

	StorageLocal = "local"
	StorageOSS   = "oss"
)

type (
	Config struct {
		Env       string
		Build     string
		Debug     bool
		TestMode  bool
		WorkDir   string
		AppName   string
		SecretKey string

		FrontendBaseURL          string
		InstitutionalEmailDomain string
		RollbarToken             string
		SendgridApiKey           string
		PasswordResetTimeout     time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Uploads  UploadConfig

		defaultFromEmail string
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		BaseURL                   string // public URL of the API, used in links it hands out
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver        string // local | oss
		LocalRoot     string
		PublicBaseURL string

		OSSEndpoint  string
		OSSAccessKey string
		OSSSecretKey string
		OSSBucket    string
	}

	// UploadConfig holds the per-feature upload ceilings, in bytes.
	UploadConfig struct {
		MaxUploadSize      int64 // announcements, messages, contributions, avatars
		AudioMaxUploadSize int64 // audio messages
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "k2m9-vr8w)ahd$+31=xq&uobn6(z!c)#*p4(#tm7h^$ralx2fw")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("institutionalEmailDomain", "")
	v.SetDefault("passwordResetTimeout", time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverBaseURL", "http://localhost:8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "darasa")
	v.SetDefault("dbUser", "darasa")
	v.SetDefault("dbPassword", "darasa")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("storageDriver", StorageLocal)
	v.SetDefault("storageLocalRoot", "media")
	v.SetDefault("storagePublicBaseURL", "http://localhost:8000/media")
	v.SetDefault("ossEndpoint", "")
	v.SetDefault("ossAccessKey", "")
	v.SetDefault("ossSecretKey", "")
	v.SetDefault("ossBucket", "")

	v.SetDefault("maxUploadSize", 10*MB)
	v.SetDefault("audioMaxUploadSize", 100*MB)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:       env,
		Build:     v.GetString("build"),
		Debug:     v.GetBool("debug"),
		TestMode:  v.GetBool("testMode"),
		WorkDir:   wd,
		AppName:   v.GetString("appName"),
		SecretKey: v.GetString("secretKey"),

		FrontendBaseURL:          strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		InstitutionalEmailDomain: CleanString(v.GetString("institutionalEmailDomain"), true /* lower */),
		RollbarToken:             v.GetString("rollbarToken"),
		SendgridApiKey:           v.GetString("sendgridApiKey"),
		PasswordResetTimeout:     v.GetDuration("passwordResetTimeout"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			BaseURL:                   strings.TrimRight(v.GetString("serverBaseURL"), "/"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storageDriver"),
			LocalRoot:     v.GetString("storageLocalRoot"),
			PublicBaseURL: strings.TrimRight(v.GetString("storagePublicBaseURL"), "/"),
			OSSEndpoint:   v.GetString("ossEndpoint"),
			OSSAccessKey:  v.GetString("ossAccessKey"),
			OSSSecretKey:  v.GetString("ossSecretKey"),
			OSSBucket:     v.GetString("ossBucket"),
		},
		Uploads: UploadConfig{
			MaxUploadSize:      v.GetInt64("maxUploadSize"),
			AudioMaxUploadSize: v.GetInt64("audioMaxUploadSize"),
		},

		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookup, no .env files.
func NewTestConfig() *Config {
	return &Config{
		Env:                  "TEST",
		Build:                "test",
		TestMode:             true,
		WorkDir:              Getwd(),
		AppName:              "Darasa",
		SecretKey:            "secret",
		FrontendBaseURL:      "http://localhost:3000",
		PasswordResetTimeout: time.Hour,
		Server: ServerConfig{
			Host:                      "localhost",
			BaseURL:                   "http://localhost:8000",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:        StorageLocal,
			PublicBaseURL: "http://localhost:8000/media",
		},
		Uploads: UploadConfig{
			MaxUploadSize:      10 * MB,
			AudioMaxUploadSize: 100 * MB,
		},
		defaultFromEmail: "noreply@localhost",
	}
}

// Getwd tries to find the project root: the first parent directory holding the "assets" folder.
// go-test changes the working directory to the test package being run during tests.
func Getwd() string {
	if root := os.Getenv("DARASA_ROOT"); root != "" {
		return root
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "assets")); err == nil && fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

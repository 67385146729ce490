package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	Port             string
	DBDriver         string
	DatabaseURL      string
	JWTSecret        string
	RedisURL         string
	CloudinaryURL    string
	AttachmentFolder string
	TypingTimeout    time.Duration
	MaxMessageLength int
	CORSOrigins      string
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CLOUDINARY_URL", "")
	v.SetDefault("ATTACHMENT_FOLDER", "wyzar_messages")
	v.SetDefault("TYPING_TIMEOUT", "5s")
	v.SetDefault("MAX_MESSAGE_LENGTH", 2000)
	v.SetDefault("CORS_ORIGINS", "*")
}

// Load reads .env when present and then the process environment.
func Load() *Settings {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	s := &Settings{
		Port:             v.GetString("PORT"),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		RedisURL:         v.GetString("REDIS_URL"),
		CloudinaryURL:    v.GetString("CLOUDINARY_URL"),
		AttachmentFolder: v.GetString("ATTACHMENT_FOLDER"),
		TypingTimeout:    v.GetDuration("TYPING_TIMEOUT"),
		MaxMessageLength: v.GetInt("MAX_MESSAGE_LENGTH"),
		CORSOrigins:      v.GetString("CORS_ORIGINS"),
	}
	if s.TypingTimeout <= 0 {
		s.TypingTimeout = 5 * time.Second
	}
	if s.MaxMessageLength <= 0 {
		s.MaxMessageLength = 2000
	}
	return s
}

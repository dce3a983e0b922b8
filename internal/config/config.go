package config

import (
	"log"
	"os"
)

// Config holds everything the server reads from the environment.
// Every field has a local-development fallback so a bare `go run`
// works against a local MongoDB (or, with DEMO_MODE=true, nothing).
type Config struct {
	Port       string
	MongoURI   string
	MongoDB    string
	JWTSecret  string
	AdminToken string
	CORSOrigin string
	UploadDir  string
	DemoMode   bool
}

// Load reads the environment. godotenv is expected to have been loaded
// by main before this is called.
func Load() Config {
	cfg := Config{
		Port:       getenv("PORT", "5000"),
		MongoURI:   getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:    getenv("MONGODB_DB", "civicissues"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		AdminToken: os.Getenv("X_ADMIN_TOKEN"),
		CORSOrigin: getenv("CORS_ORIGIN", "*"),
		UploadDir:  getenv("UPLOAD_DIR", "uploads"),
		DemoMode:   os.Getenv("DEMO_MODE") == "true" || os.Getenv("DEMO_MODE") == "1",
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, using insecure development secret")
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every API key and endpoint the service talks to. It is built
// once in main and handed to each client, so nothing reads the environment
// at call time.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	OpenAIKey   string
	OpenAIModel string

	AvatarAPIKey  string
	AvatarBaseURL string

	BRollAPIKey  string
	BRollBaseURL string

	CaptionsAPIKey  string
	CaptionsBaseURL string

	VoiceAPIKey  string
	VoiceBaseURL string

	ScraperAPIKey  string
	ScraperBaseURL string

	StorageBaseURL string
	StorageAPIKey  string

	RawBucket       string
	BRollBucket     string
	CompositeBucket string
	FinalBucket     string

	// Neutral image fed to the image-to-video service for generic b-roll
	// segments that have no product shot.
	PlaceholderImageURL string
}

// Load reads .env and validates required variables
func Load() (*Config, error) {
	// .env is optional; in production everything comes from the environment
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8085"),
		MongoURI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:             getEnv("MONGODB_DATABASE", "ai_ugc"),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		AvatarAPIKey:        os.Getenv("AVATAR_API_KEY"),
		AvatarBaseURL:       getEnv("AVATAR_API_URL", "https://api.heygen.com"),
		BRollAPIKey:         os.Getenv("BROLL_API_KEY"),
		BRollBaseURL:        getEnv("BROLL_API_URL", "https://api.kie.ai"),
		CaptionsAPIKey:      os.Getenv("CAPTIONS_API_KEY"),
		CaptionsBaseURL:     getEnv("CAPTIONS_API_URL", "https://api.captions.ai"),
		VoiceAPIKey:         os.Getenv("VOICE_API_KEY"),
		VoiceBaseURL:        getEnv("VOICE_API_URL", "https://api.elevenlabs.io"),
		ScraperAPIKey:       os.Getenv("SCRAPER_API_KEY"),
		ScraperBaseURL:      getEnv("SCRAPER_API_URL", "https://api.firecrawl.dev"),
		StorageBaseURL:      os.Getenv("STORAGE_URL"),
		StorageAPIKey:       os.Getenv("STORAGE_API_KEY"),
		RawBucket:           getEnv("RAW_BUCKET", "raw-clips"),
		BRollBucket:         getEnv("BROLL_BUCKET", "b-roll"),
		CompositeBucket:     getEnv("COMPOSITE_BUCKET", "composites"),
		FinalBucket:         getEnv("FINAL_BUCKET", "finals"),
		PlaceholderImageURL: getEnv("PLACEHOLDER_IMAGE_URL", ""),
	}

	required := map[string]string{
		"OPENAI_API_KEY":   cfg.OpenAIKey,
		"AVATAR_API_KEY":   cfg.AvatarAPIKey,
		"BROLL_API_KEY":    cfg.BRollAPIKey,
		"CAPTIONS_API_KEY": cfg.CaptionsAPIKey,
		"SCRAPER_API_KEY":  cfg.ScraperAPIKey,
		"STORAGE_URL":      cfg.StorageBaseURL,
		"STORAGE_API_KEY":  cfg.StorageAPIKey,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", name)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

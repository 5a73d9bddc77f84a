package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shah-aman/ai-ugc-sub000/config"
	"github.com/shah-aman/ai-ugc-sub000/engine"
	"github.com/shah-aman/ai-ugc-sub000/pipeline"
	"github.com/shah-aman/ai-ugc-sub000/services"
	"github.com/shah-aman/ai-ugc-sub000/storage"
	"github.com/shah-aman/ai-ugc-sub000/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := store.Connect(context.Background(), cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to initialize MongoDB: %v", err)
	}
	defer db.Disconnect(context.Background())
	fmt.Println("✓ MongoDB connected successfully")

	media := engine.New()
	if !media.Available() {
		log.Printf("⚠️ ffmpeg/ffprobe not found on PATH; join and probe stages will fail")
	}

	ai := services.NewAIService(cfg.OpenAIKey, cfg.OpenAIModel)
	blob := storage.NewClient(cfg.StorageBaseURL, cfg.StorageAPIKey)

	app := &app{
		cfg:     cfg,
		store:   db,
		media:   media,
		ai:      ai,
		scraper: services.NewScraperClient(cfg.ScraperBaseURL, cfg.ScraperAPIKey),
		orchestrator: &pipeline.Orchestrator{
			Store:    db,
			Blob:     blob,
			Avatar:   services.NewAvatarClient(cfg.AvatarBaseURL, cfg.AvatarAPIKey),
			BRoll:    services.NewBRollClient(cfg.BRollBaseURL, cfg.BRollAPIKey),
			Captions: services.NewCaptionsClient(cfg.CaptionsBaseURL, cfg.CaptionsAPIKey),
			Voice:    services.NewVoiceClient(cfg.VoiceBaseURL, cfg.VoiceAPIKey),
			AI:       ai,
			Media:    media,
			Buckets: pipeline.Buckets{
				Raw:       cfg.RawBucket,
				BRoll:     cfg.BRollBucket,
				Composite: cfg.CompositeBucket,
				Final:     cfg.FinalBucket,
			},
			PlaceholderImageURL: cfg.PlaceholderImageURL,
		},
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	r.POST("/scripts", app.createScriptHandler)
	r.GET("/scripts/:id", app.getScriptHandler)
	r.POST("/pipeline/generate", app.generateAdHandler)
	r.GET("/presenters", app.listPresentersHandler)
	r.POST("/presenters", app.createPresenterHandler)
	r.GET("/health", app.healthHandler)

	fmt.Printf("=== UGC Ad Generator API ===\n")
	fmt.Printf("Server starting on port %s\n", cfg.Port)
	fmt.Printf("Endpoints:\n")
	fmt.Printf("  POST /scripts             - Draft an ad script from a product URL\n")
	fmt.Printf("  GET  /scripts/{id}        - Get script record\n")
	fmt.Printf("  POST /pipeline/generate   - Generate the ad video (resumable)\n")
	fmt.Printf("  GET  /presenters          - List presenter identities\n")
	fmt.Printf("  POST /presenters          - Create a presenter identity\n")
	fmt.Printf("  GET  /health              - Health check\n")
	fmt.Println(strings.Repeat("=", 50))

	log.Fatal(r.Run(":" + cfg.Port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

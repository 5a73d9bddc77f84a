package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shah-aman/ai-ugc-sub000/config"
	"github.com/shah-aman/ai-ugc-sub000/engine"
	"github.com/shah-aman/ai-ugc-sub000/models"
	"github.com/shah-aman/ai-ugc-sub000/pipeline"
	"github.com/shah-aman/ai-ugc-sub000/services"
	"github.com/shah-aman/ai-ugc-sub000/store"
)

type app struct {
	cfg          *config.Config
	store        *store.Store
	media        *engine.Engine
	ai           *services.AIService
	scraper      *services.ScraperClient
	orchestrator *pipeline.Orchestrator
}

type errorResponse struct {
	Error string `json:"error"`
}

type createScriptRequest struct {
	ProductURL  string `json:"product_url"`
	PresenterID string `json:"presenter_id"`
}

type generateAdRequest struct {
	ScriptID          string `json:"scriptId"`
	CaptionTemplateID string `json:"captionTemplateId"`
}

type generateAdResponse struct {
	Success      bool                 `json:"success"`
	VideoURL     string               `json:"video_url"`
	VideoDetails *models.VideoDetails `json:"video_details"`
}

// createScriptHandler scrapes a product page, researches it and drafts the
// role-tagged ad script, persisting the record at stage 0.
func (a *app) createScriptHandler(c *gin.Context) {
	var req createScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON request body"})
		return
	}
	if strings.TrimSpace(req.ProductURL) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "product_url is required"})
		return
	}
	presenterID, err := primitive.ObjectIDFromHex(req.PresenterID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid presenter_id format"})
		return
	}

	ctx := c.Request.Context()
	if _, err := a.store.GetPresenter(ctx, presenterID); err != nil {
		if store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "Presenter not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}

	product, err := a.scraper.ScrapeProduct(ctx, req.ProductURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Failed to scrape product: %v", err)})
		return
	}

	research, err := a.ai.ResearchProduct(ctx, product)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Failed to research product: %v", err)})
		return
	}

	fullScript, segments, err := a.ai.DraftScript(ctx, product, research)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Failed to draft script: %v", err)})
		return
	}

	script := &models.Script{
		ProductURL:  req.ProductURL,
		PresenterID: presenterID,
		FullScript:  fullScript,
		Segments:    segments,
		Research:    research,
		Product:     product,
		Status:      models.StageNew,
	}
	if err := a.store.InsertScript(ctx, script); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Failed to create script record: %v", err)})
		return
	}

	log.Printf("✓ Script drafted for %s | segments: %d | ID: %s", product.Name, len(segments), script.ID.Hex())
	c.JSON(http.StatusOK, script)
}

func (a *app) getScriptHandler(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid script ID format"})
		return
	}

	script, err := a.store.GetScript(c.Request.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "Script not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, script)
}

// generateAdHandler drives the resumable video pipeline for one script.
// Errors map onto the failure classes: missing prerequisites are client
// errors, a render timeout is retryable, everything else is a stage failure
// the next invocation resumes from.
func (a *app) generateAdHandler(c *gin.Context) {
	var req generateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON request body"})
		return
	}
	scriptID, err := primitive.ObjectIDFromHex(req.ScriptID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid scriptId format"})
		return
	}
	if strings.TrimSpace(req.CaptionTemplateID) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "captionTemplateId is required"})
		return
	}

	result, err := a.orchestrator.Run(c.Request.Context(), scriptID, req.CaptionTemplateID)
	if err != nil {
		log.Printf("❌ Pipeline failed for script %s: %v", req.ScriptID, err)

		var precondition *pipeline.PreconditionError
		var notFound *pipeline.NotFoundError
		switch {
		case errors.As(err, &precondition):
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, services.ErrRenderTimeout):
			c.JSON(http.StatusRequestTimeout, errorResponse{Error: err.Error()})
		case errors.Is(err, store.ErrStageConflict):
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	log.Printf("✅ Ad generated for script %s: %s", req.ScriptID, result.VideoURL)
	c.JSON(http.StatusOK, generateAdResponse{
		Success:      true,
		VideoURL:     result.VideoURL,
		VideoDetails: result.Details,
	})
}

func (a *app) listPresentersHandler(c *gin.Context) {
	presenters, err := a.store.ListPresenters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	if presenters == nil {
		presenters = []models.Presenter{}
	}
	c.JSON(http.StatusOK, presenters)
}

func (a *app) createPresenterHandler(c *gin.Context) {
	var presenter models.Presenter
	if err := c.ShouldBindJSON(&presenter); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON request body"})
		return
	}
	if presenter.Name == "" || presenter.AvatarID == "" || presenter.VoiceID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "name, avatar_id and voice_id are required"})
		return
	}

	if err := a.store.InsertPresenter(c.Request.Context(), &presenter); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Failed to create presenter: %v", err)})
		return
	}
	c.JSON(http.StatusOK, presenter)
}

func (a *app) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mongoStatus := "healthy"
	if err := a.store.Ping(ctx); err != nil {
		mongoStatus = "unhealthy: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().Format(time.RFC3339),
		"service":          "UGC Ad Generator API",
		"mongodb":          mongoStatus,
		"ffmpeg_available": a.media.Available(),
	})
}

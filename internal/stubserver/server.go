// Package stubserver is an in-process stand-in for the remote
// multi-agent documentation service. It implements the same REST
// surface the client speaks, backed by an in-memory store and canned
// agent output, so the full session workflow can run without the real
// pipeline.
package stubserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medscribe/scribe/internal/config"
	"github.com/medscribe/scribe/internal/notes"
)

// Server hosts the stub collaborator API.
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	store  *store
}

// New creates a stub server with a few seeded visits.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		store:  newStore(),
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Engine exposes the router for in-process test clients.
func (s *Server) Engine() *gin.Engine {
	return s.router
}

// Run starts the HTTP server.
func Run(s *Server) error {
	s.logger.Info("Stub collaborator listening", "port", s.config.StubPort)

	return s.router.Run(":" + s.config.StubPort)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/visits/:id", s.handleVisit)
		api.POST("/visits/:id/update-status", s.handleUpdateStatus)

		docs := api.Group("/documentation")
		{
			docs.POST("/sessions", s.handleCreateSession)
			docs.POST("/process", s.handleProcess)
			docs.GET("/transcript/:id", s.handleTranscript)
			docs.GET("/soap/:id", s.handleSoap)
			docs.POST("/save-transcript", s.handleSaveTranscript)
			docs.POST("/save-soap", s.handleSaveSoap)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scribe-stub",
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	visitID, ok := formVisitID(c)
	if !ok {
		return
	}

	threadID := s.store.mintThread(visitID)
	s.logger.Debug("Minted session", "visitID", visitID, "threadID", threadID)

	c.JSON(http.StatusOK, gin.H{"thread_id": threadID})
}

// handleProcess accepts either an uploaded audio file or a
// transcript_text form field, the same way the real pipeline does.
func (s *Server) handleProcess(c *gin.Context) {
	visitID, ok := formVisitID(c)
	if !ok {
		return
	}

	threadID := c.PostForm("thread_id")
	if threadID == "" {
		detail(c, http.StatusUnprocessableEntity, "thread_id is required")

		return
	}

	if !s.store.threadKnown(threadID) {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Unknown thread %q", threadID))

		return
	}

	transcript := c.PostForm("transcript")
	if transcript == "" {
		file, err := c.FormFile("audio")
		if err != nil {
			detail(c, http.StatusUnprocessableEntity, "either audio or transcript is required")

			return
		}

		s.logger.Debug("Received audio for processing",
			"visitID", visitID, "threadID", threadID, "bytes", file.Size)
		transcript = cannedTranscript
	}

	responses := notes.ResultSet{
		{Agent: notes.AgentTranscription, Content: transcript},
		{Agent: notes.AgentDocumentation, Content: cannedNote},
		{Agent: notes.AgentVerification, Content: cannedVerification},
	}

	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

func (s *Server) handleVisit(c *gin.Context) {
	visitID, ok := pathVisitID(c)
	if !ok {
		return
	}

	visit, found := s.store.visit(visitID)
	if !found {
		detail(c, http.StatusNotFound, fmt.Sprintf("Visit %d not found", visitID))

		return
	}

	c.JSON(http.StatusOK, visit)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	visitID, ok := pathVisitID(c)
	if !ok {
		return
	}

	status := notes.VisitStatus(c.PostForm("status"))
	if !validStatus(status) {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid status %q", status))

		return
	}

	if !s.store.setStatus(visitID, status) {
		detail(c, http.StatusNotFound, fmt.Sprintf("Visit %d not found", visitID))

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

func (s *Server) handleTranscript(c *gin.Context) {
	visitID, ok := pathVisitID(c)
	if !ok {
		return
	}

	transcript, found := s.store.transcript(visitID)
	if !found {
		detail(c, http.StatusNotFound, fmt.Sprintf("No transcript for visit %d", visitID))

		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript_text": transcript})
}

func (s *Server) handleSoap(c *gin.Context) {
	visitID, ok := pathVisitID(c)
	if !ok {
		return
	}

	note, found := s.store.soap(visitID)
	if !found {
		detail(c, http.StatusNotFound, fmt.Sprintf("No SOAP note for visit %d", visitID))

		return
	}

	c.JSON(http.StatusOK, note)
}

func (s *Server) handleSaveTranscript(c *gin.Context) {
	visitID, ok := formVisitID(c)
	if !ok {
		return
	}

	s.store.saveTranscript(visitID, c.PostForm("transcript_text"))
	c.JSON(http.StatusOK, gin.H{"message": "Transcript saved"})
}

func (s *Server) handleSaveSoap(c *gin.Context) {
	visitID, ok := formVisitID(c)
	if !ok {
		return
	}

	note := notes.SoapNote{
		Subjective: c.PostForm("subjective"),
		Objective:  c.PostForm("objective"),
		Assessment: c.PostForm("assessment"),
		Plan:       c.PostForm("treatment_plan"),
	}

	s.store.saveSoap(visitID, note)
	c.JSON(http.StatusOK, gin.H{"message": "SOAP note saved"})
}

// detail writes an error body shaped like the real service's.
func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func formVisitID(c *gin.Context) (notes.VisitID, bool) {
	return parseVisitID(c, c.PostForm("visit_id"))
}

func pathVisitID(c *gin.Context) (notes.VisitID, bool) {
	return parseVisitID(c, c.Param("id"))
}

func parseVisitID(c *gin.Context, raw string) (notes.VisitID, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid visit id %q", raw))

		return 0, false
	}

	return notes.VisitID(id), true
}

func validStatus(status notes.VisitStatus) bool {
	switch status {
	case notes.StatusScheduled, notes.StatusInProgress, notes.StatusCompleted, notes.StatusCanceled:
		return true
	default:
		return false
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/chat"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/mcpserver"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/vectorstore"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 50
)

type Handler struct {
	Service *Service
	// Chat and Archive are optional.
	Chat    *chat.Service
	Archive *vectorstore.PGVectorStore
	MCP     *mcpserver.Server
}

func NewHandler(s *Service, c *chat.Service, archive *vectorstore.PGVectorStore, mcp *mcpserver.Server) *Handler {
	return &Handler{Service: s, Chat: c, Archive: archive, MCP: mcp}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(h.Service.Components.Metrics.Handler()))
	if h.MCP != nil {
		r.Any("/mcp", gin.WrapH(h.MCP.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/research", h.createJob)
		api.GET("/research", h.listJobs)
		api.GET("/research/:id", h.getJob)
		api.GET("/research/:id/state", h.getJobState)
		api.GET("/research/:id/logs", h.getJobLogs)
		api.POST("/research/:id/cancel", h.cancelJob)

		api.GET("/knowledge/stats", h.knowledgeStats)
		api.GET("/knowledge/search", h.searchKnowledge)
		api.GET("/knowledge/archive", h.archiveByURL)
		api.POST("/knowledge/archive/query", h.archiveByMetadata)

		api.POST("/score", h.scoreSource)

		if h.Chat != nil {
			api.POST("/chat/conversations", h.createConversation)
			api.GET("/chat/conversations", h.listConversations)
			api.GET("/chat/conversations/:id/messages", h.getMessages)
			api.POST("/chat/conversations/:id/messages", h.sendMessage)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"running_jobs": h.Service.Running(),
		"documents":    h.Service.Components.Knowledge.Len(),
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrEmptyTopic.Error()})
		return
	}

	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.Service.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func jobError(c *gin.Context, err error) {
	if errors.Is(err, ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) getJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.Service.GetJob(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	state, err := h.Service.GetJobState(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	if state == nil {
		state = json.RawMessage("null")
	}
	c.Data(http.StatusOK, "application/json", state)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	logs, err := h.Service.GetJobLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) cancelJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Service.CancelJob(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}

func (h *Handler) knowledgeStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Components.Knowledge.Stats())
}

func (h *Handler) searchKnowledge(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	n := defaultSearchResults
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxSearchResults {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be between 1 and 50"})
			return
		}
		n = v
	}

	results, err := h.Service.Components.Knowledge.Retrieve(c.Request.Context(), query, n, c.Query("topic"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"context": knowledge.FormatContext(results),
	})
}

func (h *Handler) archiveByURL(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge archive is not configured"})
		return
	}
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter url is required"})
		return
	}
	docs, err := h.Archive.GetContentByURL(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []vectorstore.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) archiveByMetadata(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge archive is not configured"})
		return
	}
	var req struct {
		Filter map[string]any `json:"filter" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docs, err := h.Archive.GetContentByMetadata(c.Request.Context(), req.Filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []vectorstore.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

type scoreRequest struct {
	URL     string `json:"url" binding:"required"`
	Content string `json:"content"`
	Topic   string `json:"topic" binding:"required"`
}

func (h *Handler) scoreSource(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	minScore := h.Service.Components.Scorer.MinScore
	scored := scorer.ScoreSource(source.Page{URL: req.URL, RawContent: req.Content}, req.Topic)
	c.JSON(http.StatusOK, gin.H{
		"url":       scored.URL,
		"scores":    scored.Quality,
		"min_score": minScore,
		"passes":    scored.Quality.Final >= minScore,
	})
}

func (h *Handler) createConversation(c *gin.Context) {
	conv, err := h.Chat.CreateConversation(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) listConversations(c *gin.Context) {
	convs, err := h.Chat.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) getMessages(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	msgs, err := h.Chat.GetHistory(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// writeEvent emits one SSE data frame. It reports false once the frame
// cannot be encoded or the client has gone away.
func writeEvent(c *gin.Context, event chat.StreamEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func (h *Handler) sendMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := h.Chat.SendMessage(c.Request.Context(), id, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for event, err := range next {
		if err != nil {
			writeEvent(c, chat.StreamEvent{Type: chat.EventError, Payload: err.Error()})
			return
		}
		if !writeEvent(c, event) {
			return
		}
	}
}

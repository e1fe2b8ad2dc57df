package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/service"
)

// maxSaveSize caps uploaded save files at 32 MiB.
const maxSaveSize = 32 << 20

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// respondError maps the service error taxonomy to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID), errors.Is(err, service.ErrParse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

type CreateMatchRequest struct {
	Match      models.ParsedMatch `json:"match" binding:"required"`
	ReporterID string             `json:"reporterId" binding:"required"`
	IsCloud    bool               `json:"isCloud"`
	MessageID  string             `json:"messageId" binding:"required"`
}

// CreateMatch ingests already-parsed match fields.
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.CreateFromParsed(&req.Match, req.ReporterID, req.IsCloud, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if match.Repeated {
		status = http.StatusOK
	}
	c.JSON(status, match)
}

// UploadSave ingests a raw save file: parse, archive, create.
func (h *MatchHandler) UploadSave(c *gin.Context) {
	reporterID := c.PostForm("reporterId")
	messageID := c.PostForm("messageId")
	if reporterID == "" || messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reporterId and messageId are required"})
		return
	}
	isCloud := c.PostForm("isCloud") == "true"

	fileHeader, err := c.FormFile("save")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "save file is required"})
		return
	}
	if fileHeader.Size > maxSaveSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "save file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open save file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSaveSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read save file"})
		return
	}

	match, err := h.matchService.CreateFromSave(data, reporterID, isCloud, messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if match.Repeated {
		status = http.StatusOK
	}
	c.JSON(status, match)
}

// GetMatch returns a match by id, checking pending first and falling
// back to the validated archive.
func (h *MatchHandler) GetMatch(c *gin.Context) {
	match, validated, err := h.matchService.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match":     match,
		"validated": validated,
	})
}

// UpdateMatch applies a partial update to a pending match.
func (h *MatchHandler) UpdateMatch(c *gin.Context) {
	var patch models.MatchPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.Update(c.Param("id"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// DeleteMatch drops a pending match without approval.
func (h *MatchHandler) DeleteMatch(c *gin.Context) {
	match, err := h.matchService.DeletePending(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type AppendMessagesRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required,min=1"`
}

// AppendMessages attaches correlation ids to a pending match.
func (h *MatchHandler) AppendMessages(c *gin.Context) {
	var req AppendMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.AppendMessageIDs(c.Param("id"), req.MessageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type ChangeOrderRequest struct {
	NewOrder  string `json:"newOrder" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

// ChangeOrder rewrites team placements.
func (h *MatchHandler) ChangeOrder(c *gin.Context) {
	var req ChangeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.ChangeOrder(c.Param("id"), req.NewOrder, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type QuitRequest struct {
	DiscordID string `json:"discordId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

// ToggleQuit flips a player's quit flag.
func (h *MatchHandler) ToggleQuit(c *gin.Context) {
	var req QuitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.ToggleQuit(c.Param("id"), req.DiscordID, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type AssignIdentityRequest struct {
	Slot      int    `json:"slot" binding:"required"`
	DiscordID string `json:"discordId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

// AssignIdentity binds a persistent identity to a seat.
func (h *MatchHandler) AssignIdentity(c *gin.Context) {
	var req AssignIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.AssignDiscordID(c.Param("id"), req.Slot, req.DiscordID, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type AssignSubRequest struct {
	Slot      int    `json:"slot"`
	DiscordID string `json:"discordId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

// AssignSub records a substitution at a seat.
func (h *MatchHandler) AssignSub(c *gin.Context) {
	var req AssignSubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.AssignSub(c.Param("id"), req.Slot, req.DiscordID, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// RemoveSub undoes a substitution. The slot names the substituted-out
// row; the message id rides in the query string.
func (h *MatchHandler) RemoveSub(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be a number"})
		return
	}

	match, err := h.matchService.RemoveSub(c.Param("id"), slot, c.Query("messageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type ApproveRequest struct {
	ApproverID string `json:"approverId" binding:"required"`
}

// Approve finalizes a pending match.
func (h *MatchHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.Approve(c.Param("id"), req.ApproverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

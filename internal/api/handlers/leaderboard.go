package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/service"
)

type LeaderboardHandler struct {
	matchService *service.MatchService
}

func NewLeaderboardHandler(matchService *service.MatchService) *LeaderboardHandler {
	return &LeaderboardHandler{matchService: matchService}
}

// GetLeaderboard returns the ranked projection for one stats store.
// Query parameters: game (civ6|civ7), type (match type label), cloud,
// seasonal, combined.
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	game := c.DefaultQuery("game", models.GameCiv6)
	gameMode := c.Query("type")
	isCloud := c.Query("cloud") == "true"
	seasonal := c.Query("seasonal") == "true"
	combined := c.Query("combined") == "true"

	entries, err := h.matchService.Leaderboard(isCloud, game, gameMode, seasonal, combined)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game":        game,
		"type":        gameMode,
		"seasonal":    seasonal,
		"combined":    combined,
		"leaderboard": entries,
		"total":       len(entries),
	})
}

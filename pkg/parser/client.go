package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/pkg/logger"
)

var (
	// ErrUnknownFormat means the upload carries no recognized save
	// signature.
	ErrUnknownFormat = errors.New("unrecognized save file format")
	// ErrParse means the parser service rejected the save.
	ErrParse = errors.New("save file could not be parsed")
)

// Client talks to the save-parser service over HTTP. The parser is a
// separate deployment because save formats change with every game
// patch and its release cycle is independent of the engine's.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a parser client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Parse submits raw save-file bytes and returns the structured match
// fields. The game is dispatched on the file's magic bytes.
func (c *Client) Parse(data []byte) (*models.ParsedMatch, error) {
	game, err := detectGame(data)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/parse/%s", c.baseURL, game)
	resp, err := c.httpClient.Post(url, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parser request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("Parser rejected save file", "game", game, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: %s", ErrParse, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("parser returned status %d", resp.StatusCode)
	}

	var parsed models.ParsedMatch
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode parser response: %w", err)
	}
	if parsed.Game == "" {
		parsed.Game = game
	}
	return &parsed, nil
}

// HealthCheck verifies the parser service is reachable.
func (c *Client) HealthCheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("parser health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("parser is not healthy: status %d", resp.StatusCode)
	}
	return nil
}

// detectGame sniffs the leading magic bytes of a save file.
func detectGame(data []byte) (string, error) {
	if len(data) < 4 {
		return "", ErrUnknownFormat
	}
	switch string(data[:4]) {
	case "CIV6":
		return models.GameCiv6, nil
	case "CIV7":
		return models.GameCiv7, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Package match exposes the matching engine over HTTP.
package match

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/models"
)

// Handler serves matching endpoints
type Handler struct {
	engine *matching.Engine
	logger *zap.Logger
}

// NewHandler creates a new match handler
func NewHandler(engine *matching.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes registers matching endpoints
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/match")
	g.POST("", h.Match)
	g.POST("/candidates", h.Candidates)
	g.POST("/similarity", h.Similarity)
}

// Match resolves a listing against the catalog, creating a new product when
// nothing is close enough.
func (h *Handler) Match(c echo.Context) error {
	ctx := c.Request().Context()

	var input models.ListingInput
	if err := c.Bind(&input); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&input); err != nil {
		return err
	}

	result, err := h.engine.FindOrCreateMatch(ctx, input)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			h.logger.Error("storage failure during match", zap.Error(err))
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
		}
		return err
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

// CandidatesResponse pairs the derived signal with the retrieved candidates.
type CandidatesResponse struct {
	Signal     *models.NormalizedSignal  `json:"signal"`
	Candidates []models.CanonicalProduct `json:"candidates"`
}

// Candidates returns the plausible catalog products for a listing without
// resolving a match. Intended for diagnostics and review tooling.
func (h *Handler) Candidates(c echo.Context) error {
	ctx := c.Request().Context()

	var input models.ListingInput
	if err := c.Bind(&input); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&input); err != nil {
		return err
	}

	signal := h.engine.Signal(input)
	candidates, err := h.engine.FindCandidates(ctx, signal)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
		}
		return err
	}

	return c.JSON(http.StatusOK, CandidatesResponse{
		Signal:     signal,
		Candidates: candidates,
	})
}

// SimilarityRequest holds the two listings to compare
type SimilarityRequest struct {
	A models.ListingInput `json:"a" validate:"required"`
	B models.ListingInput `json:"b" validate:"required"`
}

// SimilarityResponse holds the aggregate score and per-field breakdown
type SimilarityResponse struct {
	Score       float64            `json:"score"`
	FieldScores map[string]float64 `json:"field_scores"`
}

// Similarity scores two listings against each other without touching storage
func (h *Handler) Similarity(c echo.Context) error {
	var req SimilarityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.A.Title == "" || req.B.Title == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "both listings require a title")
	}

	score, fields := h.engine.SimilarityWithFields(h.engine.Signal(req.A), h.engine.Signal(req.B))

	return c.JSON(http.StatusOK, SimilarityResponse{
		Score:       score,
		FieldScores: fields,
	})
}

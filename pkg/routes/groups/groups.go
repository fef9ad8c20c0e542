// Package groups exposes query-time product grouping over HTTP.
package groups

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/pkg/grouping"
	"github.com/pricewatch/catalog/pkg/models"
)

// Handler serves grouping endpoints
type Handler struct {
	pipeline *grouping.Pipeline
	logger   *zap.Logger
}

// NewHandler creates a new groups handler
func NewHandler(pipeline *grouping.Pipeline, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers grouping endpoints
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/groups", h.Groups)
}

// Groups clusters catalog products matching a search query, each group
// carrying its listings and price range.
func (h *Handler) Groups(c echo.Context) error {
	ctx := c.Request().Context()

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	filters := models.GroupFilters{
		VerifiedOnly: c.QueryParam("verified_only") == "true",
	}
	if platforms := c.QueryParam("platforms"); platforms != "" {
		for _, p := range strings.Split(platforms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				filters.Platforms = append(filters.Platforms, p)
			}
		}
	}

	result, err := h.pipeline.GroupForQuery(ctx, query, filters)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			h.logger.Error("storage failure during grouping", zap.Error(err))
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

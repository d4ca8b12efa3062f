package newsletter

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler serves the newsletter HTTP endpoints.
type Handler struct {
	registrar *Registrar
	limiter   *rateLimiter
	logger    *slog.Logger
}

// HandlerConfig tunes the signup rate limit.
type HandlerConfig struct {
	RateLimit  int
	RateWindow time.Duration
	Logger     *slog.Logger
}

// NewHandler creates a newsletter handler. Signups default to 5 per IP per
// minute.
func NewHandler(reg *Registrar, cfg HandlerConfig) *Handler {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		registrar: reg,
		limiter:   newRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:    cfg.Logger,
	}
}

// Close stops the rate limiter's cleanup goroutine.
func (h *Handler) Close() {
	h.limiter.close()
}

// SubscribeRequest is the signup body.
type SubscribeRequest struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type subscribeResponse struct {
	Message    string     `json:"message"`
	Subscriber Subscriber `json:"subscriber"`
}

type countResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Subscribe handles POST /api/newsletter.
func (h *Handler) Subscribe(c echo.Context) error {
	if !h.limiter.allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "Too many requests, try again later"})
	}

	var req SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Valid email is required"})
	}

	res, err := h.registrar.Subscribe(c.Request().Context(), req.Email, req.Name)
	if err != nil {
		h.logger.Error("Newsletter subscription error", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to subscribe to newsletter"})
	}
	switch res.Outcome {
	case Invalid:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Valid email is required"})
	case Conflict:
		return c.JSON(http.StatusConflict, errorResponse{Error: "Email already subscribed"})
	}
	return c.JSON(http.StatusCreated, subscribeResponse{
		Message:    "Successfully subscribed to newsletter!",
		Subscriber: res.Subscriber,
	})
}

// Count handles GET /api/newsletter.
func (h *Handler) Count(c echo.Context) error {
	n, err := h.registrar.Count(c.Request().Context())
	if err != nil {
		h.logger.Error("Error fetching newsletter stats", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to fetch newsletter stats"})
	}
	return c.JSON(http.StatusOK, countResponse{Count: n, Message: "Newsletter stats retrieved successfully"})
}

// Unsubscribe handles GET /api/newsletter/unsubscribe?token=<id>.
func (h *Handler) Unsubscribe(c echo.Context) error {
	id, err := uuid.Parse(strings.TrimSpace(c.QueryParam("token")))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid unsubscribe token"})
	}
	err = h.registrar.Unsubscribe(c.Request().Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Subscriber not found"})
	case err != nil:
		h.logger.Error("Newsletter unsubscribe error", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to unsubscribe"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "You have been unsubscribed"})
}

// RegisterRoutes registers the newsletter routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/newsletter", h.Subscribe)
	g.GET("/newsletter", h.Count)
	g.GET("/newsletter/unsubscribe", h.Unsubscribe)
}

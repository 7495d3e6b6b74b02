package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Handler serves the read API and the staff API on top of the services.
type Handler struct {
	svc   *service.Services
	rules *config.Rules
	store store.Reader
	log   *slog.Logger
}

func NewHandler(svc *service.Services, rules *config.Rules, st store.Reader) *Handler {
	return &Handler{svc: svc, rules: rules, store: st, log: logger.Component("api")}
}

var errorStatus = []struct {
	err    error
	status int
}{
	{store.ErrNotFound, http.StatusNotFound},
	{service.ErrGuildNotFound, http.StatusNotFound},
	{service.ErrCashoutNotFound, http.StatusNotFound},
	{service.ErrUnknownCategory, http.StatusBadRequest},
	{service.ErrUnknownEvent, http.StatusBadRequest},
	{service.ErrUnknownProduct, http.StatusBadRequest},
	{service.ErrInvalidDuration, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrEventActive, http.StatusConflict},
	{service.ErrEventNotActive, http.StatusConflict},
	{service.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{service.ErrFeatureDisabled, http.StatusForbidden},
}

// fail writes err as a JSON error. Unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error()})
			return
		}
	}
	h.log.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// limitParam reads ?limit=, clamped to [1, maxLimit].
func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

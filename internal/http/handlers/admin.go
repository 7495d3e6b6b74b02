package handlers

import (
	"net/http"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/http/middleware"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// AuditLog returns the most recent staff actions.
func (h *Handler) AuditLog(c *gin.Context) {
	entries, err := h.svc.Audit.Recent(c.Request.Context(), limitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type grantXPRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"max=200"`
}

// GrantXP credits XP to a member on behalf of the caller.
func (h *Handler) GrantXP(c *gin.Context) {
	var req grantXPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "admin API"
	}
	res, err := h.svc.XP.AdminGrant(c.Request.Context(), req.UserID, req.Amount, req.Reason, middleware.StaffID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"granted":   res.Granted,
		"old_level": res.OldLevel,
		"new_level": res.NewLevel,
	})
}

type xpGateRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Gated  *bool  `json:"gated" binding:"required"`
}

// SetXPGate blocks or unblocks XP gains for a member.
func (h *Handler) SetXPGate(c *gin.Context) {
	var req xpGateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.XP.SetXPGate(c.Request.Context(), req.UserID, *req.Gated, middleware.StaffID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "gated": *req.Gated})
}

type startEventRequest struct {
	Event    string `json:"event" binding:"required"`
	Duration string `json:"duration" binding:"required"`
}

// StartEvent starts a catalogued event for a duration like "1d3h".
func (h *Handler) StartEvent(c *gin.Context) {
	var req startEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := service.ParseDuration(req.Duration)
	if err != nil {
		h.fail(c, err)
		return
	}
	ev, err := h.svc.Events.Start(c.Request.Context(), req.Event, d, middleware.StaffID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// StopEvent ends a running event early.
func (h *Handler) StopEvent(c *gin.Context) {
	ev, err := h.svc.Events.Stop(c.Request.Context(), c.Param("id"), middleware.StaffID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type purchaseRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	ProductID   string `json:"product_id" binding:"required"`
	OptionID    string `json:"option_id"`
	CreditUsed  string `json:"credit_used"`
}

type purchaseResponse struct {
	Price      decimal.Decimal `json:"price"`
	XPGranted  int64           `json:"xp_granted"`
	ReferrerID string          `json:"referrer_id,omitempty"`
	Commission decimal.Decimal `json:"commission"`
	VIPUntil   *time.Time      `json:"vip_until,omitempty"`
}

// RecordPurchase applies a sale made outside the server.
func (h *Handler) RecordPurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	credit := decimal.Zero
	if req.CreditUsed != "" {
		v, err := service.ParseCredits(req.CreditUsed)
		if err != nil {
			h.fail(c, err)
			return
		}
		credit = v
	}
	res, err := h.svc.Economy.RecordPurchase(c.Request.Context(), service.Purchase{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		ProductID:   req.ProductID,
		OptionID:    req.OptionID,
		CreditUsed:  credit,
		RecordedBy:  middleware.StaffID(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchaseResponse{
		Price:      res.Price,
		XPGranted:  res.XPGranted,
		ReferrerID: res.ReferrerID,
		Commission: res.Commission,
		VIPUntil:   res.VIPUntil,
	})
}

// ApproveCashout marks a pending cashout, keyed by its staff message id, as paid.
func (h *Handler) ApproveCashout(c *gin.Context) {
	co, err := h.svc.Economy.ApproveCashout(c.Request.Context(), c.Param("id"), service.Staff{ID: middleware.StaffID(c)})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, co)
}

// DenyCashout rejects a pending cashout and refunds it.
func (h *Handler) DenyCashout(c *gin.Context) {
	co, err := h.svc.Economy.DenyCashout(c.Request.Context(), c.Param("id"), service.Staff{ID: middleware.StaffID(c)})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, co)
}

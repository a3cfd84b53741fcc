package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"nazim/internal/common"
	"nazim/internal/repositories"
	"nazim/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

// actingUser returns the authenticated user when present so lifecycle changes
// can be attributed in the audit history.
func actingUser(c echo.Context) *uuid.UUID {
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return nil
	}
	return &userID
}

// AdminHandlers exposes platform-operator endpoints: lifecycle mutations and
// manual job triggers. These routes must sit behind operator auth.
type AdminHandlers struct {
	subscriptionService services.SubscriptionService
	usageService        services.UsageService
	historyRepo         repositories.HistoryRepository
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(subscriptionService services.SubscriptionService, usageService services.UsageService,
	historyRepo repositories.HistoryRepository) *AdminHandlers {
	return &AdminHandlers{
		subscriptionService: subscriptionService,
		usageService:        usageService,
		historyRepo:         historyRepo,
	}
}

// ProcessTransitions runs the status transition sweep on demand
func (h *AdminHandlers) ProcessTransitions(c echo.Context) error {
	counts, err := h.subscriptionService.ProcessStatusTransitions(c.Request().Context(), timeNow())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"counts": counts,
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, counts)
}

// RecalculateUsage forces a fresh usage count for one organization
func (h *AdminHandlers) RecalculateUsage(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	counts, err := h.usageService.RecalculateUsage(c.Request().Context(), organizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to recalculate usage")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"usage": counts,
	})
}

// StartTrial creates a trial subscription for an organization
func (h *AdminHandlers) StartTrial(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	performedBy := actingUser(c)
	sub, err := h.subscriptionService.CreateTrialSubscription(c.Request().Context(), organizationID, performedBy)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySubscribed) {
			return common.SendClientError(c, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create trial")
	}
	return c.JSON(http.StatusCreated, sub)
}

// ActivateRequest represents the activation payload
type ActivateRequest struct {
	PlanID string  `json:"plan_id" validate:"required"`
	Notes  *string `json:"notes"`
}

// Activate creates an active subscription, retiring any current one
func (h *AdminHandlers) Activate(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	var req ActivateRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}
	planID, err := common.ValidateUUID(req.PlanID, "plan_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	performedBy := actingUser(c)
	sub, err := h.subscriptionService.ActivateSubscription(c.Request().Context(), organizationID, planID, performedBy, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrPlanNotFound) {
			return common.SendNotFoundError(c, "plan")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to activate subscription")
	}
	return c.JSON(http.StatusCreated, sub)
}

// LifecycleActionRequest carries the reason for a cancel or suspend
type LifecycleActionRequest struct {
	Reason string `json:"reason"`
}

// Cancel cancels the organization's current subscription
func (h *AdminHandlers) Cancel(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	var req LifecycleActionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	performedBy := actingUser(c)
	if err := h.subscriptionService.CancelSubscription(c.Request().Context(), organizationID, req.Reason, performedBy); err != nil {
		if errors.Is(err, services.ErrNoSubscription) {
			return common.SendNotFoundError(c, "subscription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to cancel subscription")
	}
	return c.NoContent(http.StatusNoContent)
}

// Suspend blocks the organization's subscription
func (h *AdminHandlers) Suspend(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	var req LifecycleActionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}
	if req.Reason == "" {
		return common.SendClientError(c, "reason is required")
	}

	performedBy := actingUser(c)
	if err := h.subscriptionService.SuspendSubscription(c.Request().Context(), organizationID, req.Reason, performedBy); err != nil {
		if errors.Is(err, services.ErrNoSubscription) {
			return common.SendNotFoundError(c, "subscription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to suspend subscription")
	}
	return c.NoContent(http.StatusNoContent)
}

// UsageRows returns the stored usage counters for one organization, with
// calculation and warning timestamps
func (h *AdminHandlers) UsageRows(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	rows, err := h.usageService.UsageRows(c.Request().Context(), organizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load usage rows")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"usage": rows,
	})
}

// History returns the lifecycle audit trail for one organization
func (h *AdminHandlers) History(c echo.Context) error {
	organizationID, err := common.ValidateUUID(c.Param("org_id"), "org_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}
	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	entries, err := h.historyRepo.ListByOrganization(c.Request().Context(), organizationID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load subscription history")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}

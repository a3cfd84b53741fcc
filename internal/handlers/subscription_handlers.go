package handlers

import (
	"net/http"

	"nazim/internal/common"
	"nazim/internal/models"
	"nazim/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles subscription status and usage HTTP requests
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	usageService        services.UsageService
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(subscriptionService services.SubscriptionService, usageService services.UsageService) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		usageService:        usageService,
	}
}

// GetStatus returns the current subscription status for the caller's organization
func (h *SubscriptionHandlers) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	organizationID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Organization not found")
	}

	info, err := h.subscriptionService.GetSubscriptionStatus(ctx, organizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load subscription status")
	}
	return c.JSON(http.StatusOK, info)
}

// ListPlans returns all purchasable plans
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	plans, err := h.subscriptionService.AvailablePlans(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list plans")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": plans,
	})
}

// GetAllUsage returns every resource evaluated against its effective limit for
// the caller's organization
func (h *SubscriptionHandlers) GetAllUsage(c echo.Context) error {
	ctx := c.Request().Context()
	organizationID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Organization not found")
	}

	usage, err := h.usageService.GetAllUsage(ctx, organizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load usage")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"usage": usage,
	})
}

// GetUsageByResource returns the current count and limit check for one resource
func (h *SubscriptionHandlers) GetUsageByResource(c echo.Context) error {
	ctx := c.Request().Context()
	organizationID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Organization not found")
	}

	resourceKey := models.ResourceKey(c.Param("resource"))
	if !resourceKey.Valid() {
		return common.SendClientError(c, "unknown resource key")
	}

	check, err := h.usageService.CanCreate(ctx, organizationID, resourceKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check usage")
	}
	return c.JSON(http.StatusOK, check)
}

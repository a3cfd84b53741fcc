package middleware

import (
	"net/http"

	"nazim/internal/common"
	"nazim/internal/models"
	"nazim/internal/services"

	"github.com/labstack/echo/v4"
)

// RequireReadAccess blocks requests from organizations whose subscription no
// longer grants any access (expired, cancelled, suspended, or absent).
func RequireReadAccess(subscriptionService services.SubscriptionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			level, err := resolveAccessLevel(c, subscriptionService)
			if err != nil {
				return err
			}
			switch level {
			case models.AccessFull, models.AccessGrace, models.AccessReadonly:
				return next(c)
			case models.AccessBlocked:
				return echo.NewHTTPError(http.StatusForbidden, "Subscription expired. Renew to regain access.")
			default:
				return echo.NewHTTPError(http.StatusForbidden, "No active subscription found.")
			}
		}
	}
}

// RequireWriteAccess additionally rejects readonly organizations on mutating
// routes.
func RequireWriteAccess(subscriptionService services.SubscriptionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			level, err := resolveAccessLevel(c, subscriptionService)
			if err != nil {
				return err
			}
			switch level {
			case models.AccessFull, models.AccessGrace:
				return next(c)
			case models.AccessReadonly:
				return echo.NewHTTPError(http.StatusForbidden, "Account is read-only. Renew your subscription to make changes.")
			case models.AccessBlocked:
				return echo.NewHTTPError(http.StatusForbidden, "Subscription expired. Renew to regain access.")
			default:
				return echo.NewHTTPError(http.StatusForbidden, "No active subscription found.")
			}
		}
	}
}

func resolveAccessLevel(c echo.Context, subscriptionService services.SubscriptionService) (models.AccessLevel, error) {
	organizationID, ok := common.GetOrganizationIDFromContext(c.Request().Context())
	if !ok {
		return models.AccessNone, echo.NewHTTPError(http.StatusUnauthorized, "Missing organization context")
	}
	level, err := subscriptionService.AccessLevel(c.Request().Context(), organizationID)
	if err != nil {
		return models.AccessNone, echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve subscription status")
	}
	return level, nil
}

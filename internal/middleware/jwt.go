package middleware

import (
	"net/http"
	"strings"

	"nazim/internal/common"
	"nazim/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// JWTMiddleware handles JWT token validation

func JWTMiddleware(orgRepo repositories.OrganizationRepository, jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token format")
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token not valid")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing user_id in token")
			}

			userID, err := uuid.Parse(sub)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
			}

			orgClaim, ok := claims["org"].(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing organization in token")
			}

			organizationID, err := uuid.Parse(orgClaim)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid organization format")
			}

			org, err := orgRepo.GetByID(c.Request().Context(), organizationID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to verify organization")
			}
			if org == nil || !org.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "Organization not found or inactive")
			}

			ctx := common.WithUserID(c.Request().Context(), userID)
			ctx = common.WithOrganizationID(ctx, organizationID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

package httpadapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

// withRequestContext copies the request id set by middleware.RequestID into
// the request context, so service logs carry it.
func withRequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(observability.WithRequestID(req.Context(), rid)))
			}
			return next(c)
		}
	}
}

// withLogging logs every request once, after the handler ran.
func withLogging() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log := observability.LoggerFromContext(c.Request().Context())
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				log.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	})
}

// withCORS allows the configured browser origins, with credentials.
func withCORS(origins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	})
}

// bearerGate resolves the Authorization bearer token to a user id. No route
// behind it runs without one.
func bearerGate(verifier domain.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			token, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				return noToken(c)
			}

			userID, err := verifier.Verify(req.Context(), token)
			if err != nil {
				observability.LoggerFromContext(req.Context()).Warn("token verification failed", "error", err)
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid token"})
			}

			c.SetRequest(req.WithContext(withUser(req.Context(), userID)))
			return next(c)
		}
	}
}

func withUser(ctx context.Context, userID domain.UserID) context.Context {
	ctx = domain.ContextWithUserID(ctx, userID)
	return observability.WithUserID(ctx, string(userID))
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

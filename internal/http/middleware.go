package http

import (
	"net/http"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	contentSecurityPolicy = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: https:; " +
		"font-src 'self' data:; " +
		"connect-src 'self' https://generativelanguage.googleapis.com; " +
		"frame-ancestors 'none';"

	permissionsPolicy = "geolocation=(), microphone=(), camera=()"

	strictTransportSecurity = "max-age=31536000; includeSubDomains"

	// rate limiter entries idle this long are forgotten
	rateLimitExpiry = 3 * time.Minute
)

func (s *Server) registerMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	s.echo.Use(requestLogger(s.logger))
	if s.metrics != nil {
		s.echo.Use(s.metrics.MetricsMiddleware())
	}
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: contentSecurityPolicy,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	s.echo.Use(securityHeaders(s.config.production()))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.allowedOrigins(),
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	if s.config.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.BodyLimit))
	}
}

// allowedOrigins returns the CORS origins. The frontend origin comes first so
// it is echoed back exactly; development additionally accepts any origin.
func (s *Server) allowedOrigins() []string {
	var origins []string
	if s.config.FrontendOrigin != "" {
		origins = append(origins, s.config.FrontendOrigin)
	}
	if s.config.development() || len(origins) == 0 {
		origins = append(origins, "*")
	}
	return origins
}

// securityHeaders adds the headers echo's Secure middleware does not cover.
// Echo only sends HSTS over TLS; behind a terminating proxy production needs
// it unconditionally.
func securityHeaders(production bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Permissions-Policy", permissionsPolicy)
			if production {
				h.Set(echo.HeaderStrictTransportSecurity, strictTransportSecurity)
			}
			return next(c)
		}
	}
}

// rateLimit limits each client IP to perMinute requests per minute, allowing
// the full minute's budget as a burst.
func (s *Server) rateLimit(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: rateLimitExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn("rate limit exceeded",
				zap.String("client_ip", identifier),
				zap.String("path", c.Path()),
			)
			return echo.NewHTTPError(http.StatusTooManyRequests, msgRateLimited)
		},
	})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler settle the status before logging it
				c.Error(err)
				err = nil
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

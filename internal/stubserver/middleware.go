package stubserver

import (
	"log/slog"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"github.com/medscribe/scribe/internal/config"
)

// setupSecurityMiddleware applies baseline security headers. The stub
// serves JSON only, so the CSP denies everything.
func setupSecurityMiddleware(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	stsSeconds := int64(0)
	if cfg.Env == config.EnvProduction {
		stsSeconds = int64(cfg.HSTSMaxAge)
	}

	secureMiddleware := secure.New(secure.Config{ //nolint:exhaustruct
		STSSeconds:            stsSeconds,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
	})
	router.Use(secureMiddleware)

	logger.Debug("Configured security middleware", "hsts_enabled", stsSeconds > 0)
}

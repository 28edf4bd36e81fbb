package storage

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/pkg/response"
)

// ServeMedia proxies GET /media/*key to the store. Only keys under known folders are served.
func ServeMedia(store Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if !ValidKey(key) {
			response.NotFound(c, "not found")
			return
		}
		data, err := store.Get(c.Request.Context(), key)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "not found")
			return
		}
		if err != nil {
			logger.Error("media read failed", zap.String("key", key), zap.Error(err))
			response.Internal(c, "failed to load media")
			return
		}
		contentType := http.DetectContentType(data)
		if path.Ext(key) == ".png" {
			contentType = "image/png"
		}
		c.Header("Cache-Control", "public, max-age=300")
		c.Data(http.StatusOK, contentType, data)
	}
}

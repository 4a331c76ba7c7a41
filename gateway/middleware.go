package gateway

import (
	"net/http"
	"strings"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestIDKey = "request_id"
	identityKey  = "identity"
)

var kindStatus = map[errs.Kind]int{
	errs.KindValidation:         http.StatusBadRequest,
	errs.KindNotFound:           http.StatusNotFound,
	errs.KindServiceUnavailable: http.StatusBadRequest,
	errs.KindConflict:           http.StatusConflict,
	errs.KindAuth:               http.StatusUnauthorized,
	errs.KindForbidden:          http.StatusForbidden,
	errs.KindUnexpected:         http.StatusInternalServerError,
}

func statusOf(err error) int {
	if code, ok := kindStatus[errs.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// respond writes {success: true} merged with payload.
func respond(c *gin.Context, code int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// fail writes the error envelope. Causes stay in the log.
func (g *Gateway) fail(c *gin.Context, err error) {
	code := statusOf(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Int("status", code),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		g.logger.Error("Request failed", fields...)
	} else {
		g.logger.Debug("Request rejected", fields...)
	}
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": errs.Message(err)})
}

// bind decodes the JSON body, reporting malformed input as a validation error.
func (g *Gateway) bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		g.fail(c, errs.Validation("invalid request body"))
		return false
	}
	return true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := g.services.Users.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			g.fail(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func (g *Gateway) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityOf(c).IsAdmin {
			g.fail(c, errs.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// identityOf returns the caller set by authMiddleware.
func identityOf(c *gin.Context) *models.Identity {
	if v, exists := c.Get(identityKey); exists {
		if identity, ok := v.(*models.Identity); ok {
			return identity
		}
	}
	return &models.Identity{}
}

package bark

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestIDLength = 128

// RequestID returns middleware that makes sure every request has an ID.
// The ID given by a client in [HTTPHeaderRequestID] is kept, otherwise a new UUID is issued.
// The ID is sent back in the response headers.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(HTTPHeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		ctx.Header(HTTPHeaderRequestID, id)
		ctx.Next()
	}
}

// RequestIDOf returns ID of the request set by [RequestID] middleware.
func RequestIDOf(ctx *gin.Context) string {
	return ctx.Writer.Header().Get(HTTPHeaderRequestID)
}

// Datacenter returns middleware that sets [HTTPHeaderDatacenter] on every response.
// Empty name disables the header.
func Datacenter(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if name != "" {
			ctx.Header(HTTPHeaderDatacenter, name)
		}
		ctx.Next()
	}
}

// RequestLogger returns middleware logging every completed request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		fields := []zap.Field{
			zap.String("request_id", RequestIDOf(ctx)),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("query", ctx.Request.URL.RawQuery),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", ctx.ClientIP()),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.String("errors", ctx.Errors.String()))
		}

		switch {
		case ctx.Request.Context().Err() != nil:
			log.Info("request abandoned by client", fields...)
		case ctx.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}

// Recovery returns middleware that turns panics in handlers into 500 error responses.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic",
					zap.String("request_id", RequestIDOf(ctx)),
					zap.String("path", ctx.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, &ErrorResponse{
					Status:  http.StatusInternalServerError,
					Code:    "InternalError",
					Message: "internal error",
				})
			}
		}()

		ctx.Next()
	}
}

// NotImplemented is a handler for endpoints that are reserved but not served.
func NotImplemented(ctx *gin.Context) {
	AbortWithError(ctx, &ErrorResponse{
		Status:  http.StatusNotImplemented,
		Code:    "NotImplemented",
		Message: ctx.Request.Method + " " + ctx.FullPath() + " is not implemented",
	})
}

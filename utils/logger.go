package utils

import (
	"time"

	"github.com/gin-gonic/gin"

	"dataprofileservice/pkg/logger"
)

// InitLoggerWithConfig initializes the process logger with rotation settings.
func InitLoggerWithConfig(filePath, level string, maxSize, maxBackups, maxAge int, compress bool) {
	logLevel := logger.ParseLogLevel(level)
	logger.InitWithConfig(filePath, logLevel, maxSize, maxBackups, maxAge, compress)
	logger.Infof("Logger initialized with level %s at: %s", level, filePath)
}

// LoggerMiddleware logs one line per request. The level follows the response status.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logf := logger.Infof
		switch {
		case status >= 500:
			logf = logger.Errorf
		case status >= 400:
			logf = logger.Warnf
		}
		logf("HTTP %s %s - Status: %d, Size: %d, Duration: %v, IP: %s",
			c.Request.Method, c.Request.URL.Path, status, c.Writer.Size(), time.Since(start), c.ClientIP())
	}
}

// JSONResponse sends a JSON response with the specified HTTP status code.
func JSONResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// ErrorResponse aborts the request with the error envelope {errors: [{message, code}]}.
// Errors that are not an AppError are logged in full and answered with a generic 500.
func ErrorResponse(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = NewUnexpectedError(err)
	}
	if appErr.Status >= 500 {
		logger.Errorf("API Error %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		logger.Debugf("API Error %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"errors": appErr.Details})
}

package utils

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxGuardedBody bounds how much of a body the empty-body guard reads.
const maxGuardedBody = 100 << 10

// RejectBody fails requests that carry a non-empty body.
func RejectBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxGuardedBody))
		if err != nil {
			ErrorResponse(c, NewBadRequestError("Invalid Request Structure", CodeInvalidStructure))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("{}")) {
			ErrorResponse(c, NewBadRequestError("Request Body Not Allowed", "req.body-not-allowed"))
			return
		}
		c.Next()
	}
}

// RejectQuery fails requests that carry query parameters.
func RejectQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(c.Request.URL.Query()) > 0 {
			ErrorResponse(c, NewBadRequestError("Query Parameters not Allowed", "req.query-not-allowed"))
			return
		}
		c.Next()
	}
}

// RejectParams fails requests routed with path parameters.
func RejectParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(c.Params) > 0 {
			ErrorResponse(c, NewBadRequestError("Request Params Not Allowed", "req.params-not-allowed"))
			return
		}
		c.Next()
	}
}

// AllowQuery fails requests carrying query keys outside allowed.
func AllowQuery(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var unknown []string
		for key := range c.Request.URL.Query() {
			if !slices.Contains(allowed, key) {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			ErrorResponse(c, NewBadRequestError(
				fmt.Sprintf("Unknown query parameters: %s", strings.Join(unknown, ", ")), "unknown-query-params"))
			return
		}
		c.Next()
	}
}

// RouteNotFound answers unmatched routes.
func RouteNotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		ErrorResponse(c, NewNotFoundError("Route Not Found", CodeRouteNotFound))
	}
}

// Recovery turns panics into the generic 500 response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		ErrorResponse(c, NewUnexpectedError(fmt.Errorf("panic: %v", recovered)))
	})
}

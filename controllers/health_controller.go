package controllers

import (
	"net/http"

	"dataprofileservice/utils"

	"github.com/gin-gonic/gin"
)

// RegisterHealthRoutes registers the unauthenticated liveness endpoint.
func RegisterHealthRoutes(r gin.IRoutes) {
	r.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"})
	})
}

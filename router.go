package main

import (
	"crypto/rsa"

	"github.com/gin-gonic/gin"

	"dataprofileservice/controllers"
	"dataprofileservice/utils"
)

func newRouter(realmKey *rsa.PublicKey) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(utils.Recovery(), utils.LoggerMiddleware())

	controllers.RegisterHealthRoutes(router)

	v1 := router.Group("/api/v1", utils.AuthMiddleware(realmKey))
	controllers.RegisterDataProfileRoutes(v1)

	router.NoRoute(utils.RouteNotFound())
	return router
}

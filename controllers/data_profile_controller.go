package controllers

import (
	"net/http"
	"strconv"

	"dataprofileservice/models"
	"dataprofileservice/pkg/logger"
	"dataprofileservice/services"
	"dataprofileservice/services/dto"
	"dataprofileservice/utils"

	"github.com/gin-gonic/gin"
)

const cachedResultHeader = "X-Cached-Result"

var listQueryKeys = []string{"search_term", "page", "limit", "sort_by"}

var dataProfileSrv services.DataProfileService

// SetDataProfileService initializes the data profile service instance.
// Used for dependency injection in tests to provide mock implementations.
func SetDataProfileService(s services.DataProfileService) {
	dataProfileSrv = s
}

func profileIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("profile_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.NewShapeValidationError([]utils.ErrorDetail{{
			Message: "profile_id must be a positive number",
			Code:    "number.base|",
		}})
	}
	return id, nil
}

func setCachedHeader(c *gin.Context, cached bool) {
	c.Header(cachedResultHeader, strconv.FormatBool(cached))
}

// createDataProfile handles POST /data-profile.
func createDataProfile(c *gin.Context) {
	var req dto.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	caller := utils.CallerName(c)
	logger.Debugf("Creating data profile %s for table %s", req.ProfileName, req.TableName)
	profile, err := dataProfileSrv.Create(c.Request.Context(), &req, caller)
	if err != nil {
		logger.Errorf("Failed to create data profile %s: %v", req.ProfileName, err)
		utils.ErrorResponse(c, err)
		return
	}
	logger.Infof("Successfully created data profile %s with ID: %d", profile.ProfileName, profile.ProfileID)
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": []models.DataProfile{*profile}})
}

// listDataProfiles handles GET /data-profile.
func listDataProfiles(c *gin.Context) {
	var query dto.ListProfilesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}
	if err := utils.ValidateStruct(&query); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	logger.Debugf("Listing data profiles: %s", query.CacheKey())
	result, cached, err := dataProfileSrv.List(c.Request.Context(), query)
	if err != nil {
		logger.Errorf("Failed to list data profiles: %v", err)
		utils.ErrorResponse(c, err)
		return
	}
	setCachedHeader(c, cached)
	utils.JSONResponse(c, http.StatusOK, result)
}

// getDataProfile handles GET /data-profile/:profile_id.
func getDataProfile(c *gin.Context) {
	id, err := profileIDParam(c)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	profile, cached, err := dataProfileSrv.Get(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("Failed to get data profile %d: %v", id, err)
		utils.ErrorResponse(c, err)
		return
	}
	setCachedHeader(c, cached)
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": []models.DataProfile{*profile}})
}

// updateDataProfile handles PUT /data-profile.
func updateDataProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	caller := utils.CallerName(c)
	logger.Debugf("Updating data profile %d at version %d", *req.ProfileID, *req.Version)
	profile, err := dataProfileSrv.Update(c.Request.Context(), &req, caller)
	if err != nil {
		logger.Errorf("Failed to update data profile %d: %v", *req.ProfileID, err)
		utils.ErrorResponse(c, err)
		return
	}
	logger.Infof("Successfully updated data profile %d to version %d", profile.ProfileID, profile.Version)
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": []models.DataProfile{*profile}})
}

// updateLastSyncTime handles PUT /data-profile/update/last-sync-time.
func updateLastSyncTime(c *gin.Context) {
	var req dto.LastSyncTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	profile, err := dataProfileSrv.UpdateLastSyncTime(c.Request.Context(), &req)
	if err != nil {
		logger.Errorf("Failed to update last sync time of profile %d: %v", *req.ProfileID, err)
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": []models.DataProfile{*profile}})
}

// deleteDataProfile handles DELETE /data-profile/:profile_id.
func deleteDataProfile(c *gin.Context) {
	id, err := profileIDParam(c)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	logger.Debugf("Deleting data profile with ID: %d", id)
	if err := dataProfileSrv.Delete(c.Request.Context(), id); err != nil {
		logger.Errorf("Failed to delete data profile %d: %v", id, err)
		utils.ErrorResponse(c, err)
		return
	}
	logger.Infof("Successfully deleted data profile with ID: %d", id)
	c.Status(http.StatusNoContent)
}

// RegisterDataProfileRoutes registers HTTP endpoints for data profile operations.
func RegisterDataProfileRoutes(rg *gin.RouterGroup) {
	profiles := rg.Group("/data-profile")
	{
		profiles.POST("", utils.RejectQuery(), createDataProfile)
		profiles.GET("", utils.RejectBody(), utils.AllowQuery(listQueryKeys...), listDataProfiles)
		profiles.GET("/:profile_id", utils.RejectBody(), utils.RejectQuery(), getDataProfile)
		profiles.PUT("", utils.RejectQuery(), updateDataProfile)
		profiles.PUT("/update/last-sync-time", utils.RejectQuery(), updateLastSyncTime)
		profiles.DELETE("/:profile_id", utils.RejectBody(), utils.RejectQuery(), deleteDataProfile)
	}
}

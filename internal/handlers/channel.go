package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lookout-dev/lookout/db"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/utils"
	"gorm.io/gorm"
)

type ChannelRequest struct {
	Name   string                 `json:"name" binding:"required"`
	Kind   string                 `json:"kind" binding:"required"` // "webhook", "slack", "discord", "email", "sms", "pagerduty"
	Config map[string]interface{} `json:"config" binding:"required"`
}

type ChannelResponse struct {
	ID     uint                   `json:"id"`
	Name   string                 `json:"name"`
	Kind   string                 `json:"kind"`
	Config map[string]interface{} `json:"config"`
}

var channelKinds = map[string]bool{
	"webhook":   true,
	"slack":     true,
	"discord":   true,
	"email":     true,
	"sms":       true,
	"pagerduty": true,
}

func channelResponse(channel models.NotificationChannel) ChannelResponse {
	var config map[string]interface{}

	if err := json.Unmarshal(channel.Config, &config); err != nil {
		config = make(map[string]interface{})
	}

	return ChannelResponse{
		ID:     channel.ID,
		Name:   channel.Name,
		Kind:   channel.Kind,
		Config: config,
	}
}

func CreateChannel(ctx *gin.Context) {
	var req ChannelRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.GetWorkspaceID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := workspaceForUser(workspaceID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workspace"})
		}
		return
	}

	if !channelKinds[req.Kind] {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported channel kind"})
		return
	}

	configJSON, err := json.Marshal(req.Config)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config format"})
		return
	}

	channel := models.NotificationChannel{
		WorkspaceID: uint(workspaceID),
		Name:        req.Name,
		Kind:        req.Kind,
		Config:      configJSON,
	}

	if err := db.DB.Create(&channel).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		return
	}

	ctx.JSON(http.StatusCreated, channelResponse(channel))
}

func ListChannels(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.GetWorkspaceID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := workspaceForUser(workspaceID, userID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	}

	var channels []models.NotificationChannel

	if err := db.DB.Where("workspace_id = ?", workspaceID).Find(&channels).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve channels"})
		return
	}

	var response []ChannelResponse

	for _, channel := range channels {
		response = append(response, channelResponse(channel))
	}

	ctx.JSON(http.StatusOK, response)
}

func UpdateChannel(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.GetWorkspaceID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channelID, err := utils.GetChannelID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req ChannelRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !channelKinds[req.Kind] {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported channel kind"})
		return
	}

	if _, err := workspaceForUser(workspaceID, userID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	}

	var channel models.NotificationChannel

	if err := db.DB.Where("id = ? AND workspace_id = ?", channelID, workspaceID).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve channel"})
		}
		return
	}

	configJSON, err := json.Marshal(req.Config)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config format"})
		return
	}

	channel.Name = req.Name
	channel.Kind = req.Kind
	channel.Config = configJSON

	if err := db.DB.Save(&channel).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update channel"})
		return
	}

	ctx.JSON(http.StatusOK, channelResponse(channel))
}

func DeleteChannel(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.GetWorkspaceID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channelID, err := utils.GetChannelID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := workspaceForUser(workspaceID, userID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	}

	var channel models.NotificationChannel

	if err := db.DB.Where("id = ? AND workspace_id = ?", channelID, workspaceID).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve channel"})
		}
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&channel).Association("Monitors").Clear(); err != nil {
			return err
		}

		return tx.Delete(&channel).Error
	})

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete channel"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lookout-dev/lookout/db"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/utils"
	"gorm.io/gorm"
)

type CreateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
}

type UpdateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type WorkspaceResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	OwnerID     uint   `json:"owner_id"`
}

// workspaceForUser loads a workspace the user can act on, either as its owner
// or through a membership row.
func workspaceForUser(workspaceID uint64, userID uint) (*models.Workspace, error) {
	var workspace models.Workspace

	err := db.DB.
		Joins("LEFT JOIN workspace_memberships ON workspace_memberships.workspace_id = workspaces.id AND workspace_memberships.user_id = ? AND workspace_memberships.deleted_at IS NULL", userID).
		Where("workspaces.id = ? AND (workspaces.owner_id = ? OR workspace_memberships.user_id IS NOT NULL)", workspaceID, userID).
		First(&workspace).Error

	if err != nil {
		return nil, err
	}

	return &workspace, nil
}

func CreateWorkspace(ctx *gin.Context) {
	var body CreateWorkspaceRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspace := models.Workspace{
		Name:        body.Name,
		Slug:        body.Slug,
		Description: body.Description,
		OwnerID:     userID,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}

		membership := models.WorkspaceMembership{
			UserID:      userID,
			WorkspaceID: workspace.ID,
			Role:        "owner",
		}

		return tx.Create(&membership).Error
	})

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create workspace"})
		return
	}

	ctx.JSON(http.StatusCreated, WorkspaceResponse{
		ID:          workspace.ID,
		Name:        workspace.Name,
		Slug:        workspace.Slug,
		Description: workspace.Description,
		OwnerID:     workspace.OwnerID,
	})
}

func ListWorkspaces(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var workspaces []models.Workspace

	if err := db.DB.
		Joins("LEFT JOIN workspace_memberships ON workspace_memberships.workspace_id = workspaces.id AND workspace_memberships.user_id = ? AND workspace_memberships.deleted_at IS NULL", userID).
		Where("workspaces.owner_id = ? OR workspace_memberships.user_id IS NOT NULL", userID).
		Distinct("workspaces.*").
		Find(&workspaces).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workspaces"})
		return
	}

	var response []WorkspaceResponse

	for _, workspace := range workspaces {
		response = append(response, WorkspaceResponse{
			ID:          workspace.ID,
			Name:        workspace.Name,
			Slug:        workspace.Slug,
			Description: workspace.Description,
			OwnerID:     workspace.OwnerID,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

func UpdateWorkspace(ctx *gin.Context) {
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

	var body UpdateWorkspaceRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var workspace models.Workspace

	if err := db.DB.Where("id = ? AND owner_id = ?", workspaceID, userID).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workspace"})
		}
		return
	}

	workspace.Name = body.Name
	workspace.Description = body.Description

	if err := db.DB.Save(&workspace).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update workspace"})
		return
	}

	ctx.JSON(http.StatusOK, WorkspaceResponse{
		ID:          workspace.ID,
		Name:        workspace.Name,
		Slug:        workspace.Slug,
		Description: workspace.Description,
		OwnerID:     workspace.OwnerID,
	})
}

func DeleteWorkspace(ctx *gin.Context) {
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

	var workspace models.Workspace

	if err := db.DB.Where("id = ? AND owner_id = ?", workspaceID, userID).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workspace"})
		}
		return
	}

	if err := db.DB.Delete(&workspace).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete workspace"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

type DashboardResponse struct {
	Workspace       WorkspaceResponse `json:"workspace"`
	MonitorsSummary MonitorsSummary   `json:"monitors_summary"`
	Monitors        []MonitorSummary  `json:"monitors"`
	RecentIncidents []IncidentSummary `json:"recent_incidents"`
}

type MonitorsSummary struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Degraded int `json:"degraded"`
	Error    int `json:"error"`
	Paused   int `json:"paused"`
}

type IncidentSummary struct {
	ID           uint       `json:"id"`
	MonitorID    uint       `json:"monitor_id"`
	MonitorName  string     `json:"monitor_name"`
	StartedAt    time.Time  `json:"started_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	AutoResolved bool       `json:"auto_resolved"`
}

func GetDashboard(ctx *gin.Context) {
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

	workspace, err := workspaceForUser(workspaceID, userID)

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	}

	var monitors []models.Monitor

	if err := db.DB.Where("workspace_id = ?", workspaceID).Find(&monitors).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitors"})
		return
	}

	var summaries []MonitorSummary
	var counts MonitorsSummary

	for _, monitor := range monitors {
		summary, err := buildMonitorSummary(monitor)

		if err != nil {
			continue
		}

		summaries = append(summaries, summary)
		counts.Total++

		if monitor.Paused {
			counts.Paused++
			continue
		}

		switch monitor.Status {
		case models.MonitorStatusActive:
			counts.Active++
		case models.MonitorStatusDegraded:
			counts.Degraded++
		case models.MonitorStatusError:
			counts.Error++
		}
	}

	var incidents []models.Incident

	db.DB.Joins("JOIN monitors ON monitors.id = incidents.monitor_id").
		Where("monitors.workspace_id = ? AND incidents.created_at > ?", workspaceID, time.Now().Add(-7*24*time.Hour)).
		Order("incidents.created_at DESC").
		Limit(10).
		Preload("Monitor").
		Find(&incidents)

	var incidentSummaries []IncidentSummary

	for _, incident := range incidents {
		incidentSummaries = append(incidentSummaries, IncidentSummary{
			ID:           incident.ID,
			MonitorID:    incident.MonitorID,
			MonitorName:  incident.Monitor.Name,
			StartedAt:    incident.StartedAt,
			ResolvedAt:   incident.ResolvedAt,
			AutoResolved: incident.AutoResolved,
		})
	}

	ctx.JSON(http.StatusOK, DashboardResponse{
		Workspace: WorkspaceResponse{
			ID:          workspace.ID,
			Name:        workspace.Name,
			Slug:        workspace.Slug,
			Description: workspace.Description,
			OwnerID:     workspace.OwnerID,
		},
		MonitorsSummary: counts,
		Monitors:        summaries,
		RecentIncidents: incidentSummaries,
	})
}

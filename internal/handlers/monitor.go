package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lookout-dev/lookout/db"
	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/scheduler"
	"github.com/lookout-dev/lookout/internal/types"
	"github.com/lookout-dev/lookout/internal/utils"
	"gorm.io/gorm"
)

type MonitorRequest struct {
	Name            string                 `json:"name" binding:"required"`
	JobKind         string                 `json:"job_kind" binding:"required"` // "http", "tcp", "dns", "database"
	Interval        int                    `json:"interval" binding:"required"` // Seconds between probe ticks
	Regions         []string               `json:"regions" binding:"required"`
	DegradedAfterMs int                    `json:"degraded_after_ms"`
	Paused          bool                   `json:"paused"`
	Config          map[string]interface{} `json:"config" binding:"required"`
	Assertions      []assertions.Assertion `json:"assertions"`
	ChannelIDs      []uint                 `json:"channel_ids"`
}

type MonitorSummary struct {
	ID              uint                   `json:"id"`
	Name            string                 `json:"name"`
	JobKind         string                 `json:"job_kind"`
	Status          string                 `json:"status"`
	Paused          bool                   `json:"paused"`
	Interval        int                    `json:"interval"`
	Regions         []string               `json:"regions"`
	DegradedAfterMs int                    `json:"degraded_after_ms"`
	Config          map[string]interface{} `json:"config"`
	RegionStatuses  []RegionStatusSummary  `json:"region_statuses"`
	LastCheck       *MonitorCheckSummary   `json:"last_check"`
	Uptime          float64                `json:"uptime_percentage"`
	LatencyMs       float64                `json:"avg_latency_ms"`
}

type RegionStatusSummary struct {
	Region    string    `json:"region"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MonitorCheckSummary struct {
	ID         uint      `json:"id"`
	Region     string    `json:"region"`
	Status     string    `json:"status"`
	StatusCode int       `json:"status_code"`
	LatencyMs  int       `json:"latency_ms"`
	Message    string    `json:"message"`
	CheckedAt  time.Time `json:"checked_at"`
}

// validateMonitorRequest checks the parts gin's binding tags cannot express
// and returns the probe config re-marshalled after normalization.
func validateMonitorRequest(req *MonitorRequest) ([]byte, error) {
	if req.Interval < 10 {
		return nil, errors.New("interval must be at least 10 seconds")
	}

	if len(req.Regions) == 0 {
		return nil, errors.New("at least one region is required")
	}

	seen := make(map[string]bool, len(req.Regions))

	for _, region := range req.Regions {
		if region == "" {
			return nil, errors.New("region names cannot be empty")
		}

		if seen[region] {
			return nil, fmt.Errorf("duplicate region %q", region)
		}

		seen[region] = true
	}

	for i, assertion := range req.Assertions {
		if err := assertion.Validate(); err != nil {
			return nil, fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	configJSON, err := json.Marshal(req.Config)

	if err != nil {
		return nil, errors.New("invalid config format")
	}

	switch req.JobKind {
	case "http":
		var config types.HttpConfig

		if err := json.Unmarshal(configJSON, &config); err != nil || config.URL == "" {
			return nil, errors.New("http config requires a url")
		}
	case "tcp":
		var config types.TCPConfig

		if err := json.Unmarshal(configJSON, &config); err != nil || config.Host == "" || config.Port == 0 {
			return nil, errors.New("tcp config requires a host and port")
		}
	case "dns":
		var config types.DNSConfig

		if err := json.Unmarshal(configJSON, &config); err != nil || config.Domain == "" {
			return nil, errors.New("dns config requires a domain")
		}

		domain, err := utils.ExtractRawDomain(config.Domain)

		if err != nil {
			return nil, fmt.Errorf("invalid domain: %w", err)
		}

		req.Config["domain"] = domain

		configJSON, err = json.Marshal(req.Config)

		if err != nil {
			return nil, errors.New("failed to process dns config")
		}
	case "database":
		var config types.DatabaseConfig

		if err := json.Unmarshal(configJSON, &config); err != nil || config.Host == "" || config.Database == "" {
			return nil, errors.New("database config requires a host and database name")
		}

		if config.Type != "postgres" && config.Type != "mysql" {
			return nil, errors.New("database type must be postgres or mysql")
		}
	default:
		return nil, fmt.Errorf("unsupported job kind %q", req.JobKind)
	}

	return configJSON, nil
}

func channelsForWorkspace(workspaceID uint64, channelIDs []uint) ([]models.NotificationChannel, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	var channels []models.NotificationChannel

	if err := db.DB.Where("workspace_id = ? AND id IN ?", workspaceID, channelIDs).Find(&channels).Error; err != nil {
		return nil, err
	}

	if len(channels) != len(channelIDs) {
		return nil, errors.New("one or more channels do not belong to this workspace")
	}

	return channels, nil
}

func CreateMonitor(ctx *gin.Context) {
	var req MonitorRequest

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

	configJSON, err := validateMonitorRequest(&req)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assertionsJSON, err := json.Marshal(req.Assertions)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assertions format"})
		return
	}

	channels, err := channelsForWorkspace(workspaceID, req.ChannelIDs)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor := models.Monitor{
		WorkspaceID:     uint(workspaceID),
		Name:            req.Name,
		JobKind:         req.JobKind,
		Status:          models.MonitorStatusActive,
		Paused:          req.Paused,
		Interval:        req.Interval,
		Regions:         req.Regions,
		DegradedAfterMs: req.DegradedAfterMs,
		Config:          configJSON,
		Assertions:      assertionsJSON,
		Channels:        channels,
	}

	if err := db.DB.Create(&monitor).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create monitor"})
		return
	}

	if !monitor.Paused {
		scheduler.AddMonitor(monitor)
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Monitor created successfully", "monitor_id": monitor.ID})
}

func GetMonitors(ctx *gin.Context) {
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

	var monitors []models.Monitor

	if err := db.DB.Where("workspace_id = ?", workspaceID).Find(&monitors).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitors"})
		return
	}

	var summaries []MonitorSummary

	for _, monitor := range monitors {
		summary, err := buildMonitorSummary(monitor)

		if err != nil {
			log.Printf("Failed to build summary for monitor %d: %v", monitor.ID, err)
			continue
		}

		summaries = append(summaries, summary)
	}

	ctx.JSON(http.StatusOK, summaries)
}

func UpdateMonitor(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, monitorID, err := utils.GetWorkspaceMonitorID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req MonitorRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := monitorForUser(workspaceID, monitorID, userID)

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		return
	}

	configJSON, err := validateMonitorRequest(&req)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assertionsJSON, err := json.Marshal(req.Assertions)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assertions format"})
		return
	}

	channels, err := channelsForWorkspace(workspaceID, req.ChannelIDs)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor.Name = req.Name
	monitor.JobKind = req.JobKind
	monitor.Paused = req.Paused
	monitor.Interval = req.Interval
	monitor.Regions = req.Regions
	monitor.DegradedAfterMs = req.DegradedAfterMs
	monitor.Config = configJSON
	monitor.Assertions = assertionsJSON

	if err := db.DB.Save(monitor).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update monitor"})
		return
	}

	if err := db.DB.Model(monitor).Association("Channels").Replace(channels); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update monitor channels"})
		return
	}

	// Removed regions must not keep voting in the quorum.
	if err := db.DB.Where("monitor_id = ? AND region NOT IN ?", monitor.ID, []string(monitor.Regions)).
		Delete(&models.RegionStatus{}).Error; err != nil {
		log.Printf("Failed to prune stale region statuses for monitor %d: %v", monitor.ID, err)
	}

	if monitor.Paused {
		scheduler.RemoveMonitor(monitor.ID)
	} else {
		scheduler.UpdateMonitor(*monitor)
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Monitor updated successfully", "monitor_id": monitor.ID})
}

func DeleteMonitor(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, monitorID, err := utils.GetWorkspaceMonitorID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := monitorForUser(workspaceID, monitorID, userID)

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		return
	}

	if err := db.DB.Delete(monitor).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete monitor"})
		return
	}

	scheduler.RemoveMonitor(monitor.ID)

	ctx.Status(http.StatusNoContent)
}

func GetMonitorChecks(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, monitorID, err := utils.GetWorkspaceMonitorID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := monitorForUser(workspaceID, monitorID, userID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		return
	}

	query := db.DB.Where("monitor_id = ?", monitorID)

	if region := ctx.Query("region"); region != "" {
		query = query.Where("region = ?", region)
	}

	var checks []models.MonitorCheck

	if err := query.Order("checked_at DESC").Limit(50).Find(&checks).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get checks"})
		return
	}

	var summaries []MonitorCheckSummary

	for _, check := range checks {
		summaries = append(summaries, MonitorCheckSummary{
			ID:         check.ID,
			Region:     check.Region,
			Status:     check.Status,
			StatusCode: check.StatusCode,
			LatencyMs:  check.LatencyMs,
			Message:    check.Message,
			CheckedAt:  check.CheckedAt,
		})
	}

	ctx.JSON(http.StatusOK, summaries)
}

func GetMonitorIncidents(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, monitorID, err := utils.GetWorkspaceMonitorID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := monitorForUser(workspaceID, monitorID, userID)

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		return
	}

	var incidents []models.Incident

	if err := db.DB.Where("monitor_id = ?", monitorID).
		Order("started_at DESC").
		Limit(50).
		Find(&incidents).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get incidents"})
		return
	}

	var summaries []IncidentSummary

	for _, incident := range incidents {
		summaries = append(summaries, IncidentSummary{
			ID:           incident.ID,
			MonitorID:    incident.MonitorID,
			MonitorName:  monitor.Name,
			StartedAt:    incident.StartedAt,
			ResolvedAt:   incident.ResolvedAt,
			AutoResolved: incident.AutoResolved,
		})
	}

	ctx.JSON(http.StatusOK, summaries)
}

func monitorForUser(workspaceID, monitorID uint64, userID uint) (*models.Monitor, error) {
	var monitor models.Monitor

	err := db.DB.Joins("JOIN workspaces ON workspaces.id = monitors.workspace_id").
		Joins("LEFT JOIN workspace_memberships ON workspace_memberships.workspace_id = workspaces.id AND workspace_memberships.user_id = ? AND workspace_memberships.deleted_at IS NULL", userID).
		Where("monitors.id = ? AND monitors.workspace_id = ? AND (workspaces.owner_id = ? OR workspace_memberships.user_id IS NOT NULL)", monitorID, workspaceID, userID).
		First(&monitor).Error

	if err != nil {
		return nil, err
	}

	return &monitor, nil
}

func buildMonitorSummary(monitor models.Monitor) (MonitorSummary, error) {
	var lastCheck models.MonitorCheck
	lastCheckFound := true

	if err := db.DB.Where("monitor_id = ?", monitor.ID).
		Order("checked_at DESC").
		First(&lastCheck).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return MonitorSummary{}, err
		}
		lastCheckFound = false
	}

	var regionStatuses []models.RegionStatus

	if err := db.DB.Where("monitor_id = ?", monitor.ID).
		Order("region ASC").
		Find(&regionStatuses).Error; err != nil {
		return MonitorSummary{}, err
	}

	var config map[string]interface{}

	if err := json.Unmarshal(monitor.Config, &config); err != nil {
		config = make(map[string]interface{})
	}

	summary := MonitorSummary{
		ID:              monitor.ID,
		Name:            monitor.Name,
		JobKind:         monitor.JobKind,
		Status:          monitor.Status,
		Paused:          monitor.Paused,
		Interval:        monitor.Interval,
		Regions:         monitor.Regions,
		DegradedAfterMs: monitor.DegradedAfterMs,
		Config:          config,
		Uptime:          calculateUptime(monitor.ID),
		LatencyMs:       calculateAverageLatency(monitor.ID),
	}

	for _, rs := range regionStatuses {
		summary.RegionStatuses = append(summary.RegionStatuses, RegionStatusSummary{
			Region:    rs.Region,
			Status:    rs.Status,
			UpdatedAt: rs.UpdatedAt,
		})
	}

	if lastCheckFound {
		summary.LastCheck = &MonitorCheckSummary{
			ID:         lastCheck.ID,
			Region:     lastCheck.Region,
			Status:     lastCheck.Status,
			StatusCode: lastCheck.StatusCode,
			LatencyMs:  lastCheck.LatencyMs,
			Message:    lastCheck.Message,
			CheckedAt:  lastCheck.CheckedAt,
		}
	}

	return summary, nil
}

func calculateUptime(monitorID uint) float64 {
	var total, healthy int64

	db.DB.Model(&models.MonitorCheck{}).
		Where("monitor_id = ? AND checked_at > ?", monitorID, time.Now().Add(-24*time.Hour)).
		Count(&total)

	db.DB.Model(&models.MonitorCheck{}).
		Where("monitor_id = ? AND status <> ? AND checked_at > ?", monitorID, models.MonitorStatusError, time.Now().Add(-24*time.Hour)).
		Count(&healthy)

	if total == 0 {
		return 100.0
	}

	return float64(healthy) / float64(total) * 100
}

func calculateAverageLatency(monitorID uint) float64 {
	var avg sql.NullFloat64

	db.DB.Model(&models.MonitorCheck{}).
		Select("AVG(latency_ms)").
		Where("monitor_id = ? AND status <> ? AND checked_at > ?", monitorID, models.MonitorStatusError, time.Now().Add(-24*time.Hour)).
		Scan(&avg)

	if avg.Valid {
		return avg.Float64
	}

	return 0
}

package utils

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func paramUint(ctx *gin.Context, name string) (uint64, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, errors.New(name + " not found")
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil {
		return 0, errors.New("invalid " + name)
	}

	return id, nil
}

func GetWorkspaceID(ctx *gin.Context) (uint64, error) {
	return paramUint(ctx, "workspace_id")
}

func GetMonitorID(ctx *gin.Context) (uint64, error) {
	return paramUint(ctx, "monitor_id")
}

func GetChannelID(ctx *gin.Context) (uint64, error) {
	return paramUint(ctx, "channel_id")
}

func GetWorkspaceMonitorID(ctx *gin.Context) (uint64, uint64, error) {
	workspaceID, err := GetWorkspaceID(ctx)

	if err != nil {
		return 0, 0, err
	}

	monitorID, err := GetMonitorID(ctx)

	if err != nil {
		return 0, 0, err
	}

	return workspaceID, monitorID, nil
}

// ExtractRawDomain normalizes user input like "https://www.example.com/path"
// down to the bare domain used by DNS monitors.
func ExtractRawDomain(input string) (string, error) {
	if input == "" {
		return "", errors.New("input cannot be empty")
	}

	domain := strings.TrimSpace(input)

	if strings.Contains(domain, "://") {
		parsedURL, err := url.Parse(domain)
		if err != nil {
			return "", errors.New("invalid URL format")
		}

		if parsedURL.Hostname() == "" {
			return "", errors.New("no hostname found in URL")
		}

		domain = parsedURL.Hostname()
	}

	domain = strings.TrimSuffix(domain, "/")

	if strings.HasPrefix(strings.ToLower(domain), "www.") {
		domain = domain[4:]
	}

	if domain == "" {
		return "", errors.New("invalid domain after processing")
	}

	return domain, nil
}

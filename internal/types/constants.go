package types

import (
	"os"
	"strings"
)

// ContextUserKey is the gin context key the auth middleware stores the
// authenticated user under.
const ContextUserKey = "currentUser"

// AllowedOrigins is the origin allowlist shared by the CORS middleware and
// the websocket upgrader. Local dashboard dev servers are always allowed;
// DASHBOARD_URL adds the deployed dashboard and EXTRA_ORIGINS is a
// comma-separated escape hatch.
var AllowedOrigins = buildAllowedOrigins()

func buildAllowedOrigins() []string {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	if dashboard := os.Getenv("DASHBOARD_URL"); dashboard != "" {
		origins = append(origins, dashboard)
	}

	for _, origin := range strings.Split(os.Getenv("EXTRA_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return origins
}

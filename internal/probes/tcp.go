package probes

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/types"
)

// CheckTCP establishes one TCP connection to the configured host and port.
func CheckTCP(ctx context.Context, config *types.TCPConfig) (Outcome, error) {
	timeout := config.Timeout

	if timeout == 0 {
		timeout = 10
	}

	address := net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port))

	dialer := &net.Dialer{Timeout: time.Duration(timeout) * time.Second}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return Outcome{LatencyMs: elapsed}, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	defer conn.Close()

	return Outcome{
		Facts:     assertions.ResponseFacts{JobKind: "tcp"},
		Timings:   Timings{ConnectMs: elapsed},
		LatencyMs: elapsed,
	}, nil
}

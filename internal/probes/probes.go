package probes

import (
	"github.com/lookout-dev/lookout/internal/assertions"
)

// Timings are the phase timings of one probe attempt, in milliseconds.
// Phases that do not apply to a job kind stay at zero.
type Timings struct {
	DNSMs      int64 `json:"dns"`
	ConnectMs  int64 `json:"connect"`
	TLSMs      int64 `json:"tls"`
	TTFBMs     int64 `json:"ttfb"`
	TransferMs int64 `json:"transfer"`
}

// Outcome carries everything one probe attempt observed. LatencyMs is
// wall-clock and is populated even when the probe itself failed, as long as
// it was measurable.
type Outcome struct {
	Facts     assertions.ResponseFacts
	Timings   Timings
	LatencyMs int64
}

package daemon

import (
	"time"

	"lensd/internal/inference"
	"lensd/pkg/types"
)

func statusFrom(s inference.Snapshot, uptime time.Duration) types.StatusResponse {
	out := types.StatusResponse{
		State:         string(s.Phase),
		Model:         string(s.ModelID),
		Loading:       string(s.LoadingID),
		Error:         s.Err,
		Streaming:     s.Streaming,
		Translation:   s.Translation(),
		Record:        s.Record,
		Committed:     s.Committed,
		UptimeSeconds: int64(uptime / time.Second),
	}
	if m := s.Metrics; m != nil {
		out.Metrics = &types.GenerationMetrics{
			Tokens:          m.Tokens,
			DurationMS:      int64(m.Duration / time.Millisecond),
			TokensPerSecond: m.TokensPerSecond,
		}
	}
	return out
}

func eventFrom(e inference.Event, uptime time.Duration) types.StatusEvent {
	return types.StatusEvent{Type: string(e.Type), Status: statusFrom(e.Snapshot, uptime)}
}

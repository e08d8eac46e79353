package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes run events to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs failures at error level and recoveries at info level.
func (n *LogNotifier) Notify(_ context.Context, event RunEvent) error {
	e := n.logger.Info()
	if event.Type == EventRunFailed {
		e = n.logger.Error().Strs("failed_scenarios", event.FailedScenarios)
	}

	e.Str("event", string(event.Type)).
		Str("run_id", event.RunID.String()).
		Int("failed", event.Failed).
		Int("scenarios", event.Scenarios).
		Msg("contract run " + string(event.Type))
	return nil
}

package examination

import "github.com/rs/zerolog"

// LogNotifier routes notices into the structured log. Headless runs use
// it in place of the UI toast layer.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Info(msg string)  { n.Logger.Info().Msg(msg) }
func (n LogNotifier) Error(msg string) { n.Logger.Error().Msg(msg) }

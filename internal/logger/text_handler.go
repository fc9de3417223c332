package logger

import (
	"io"
	"log/slog"
	"time"
)

// newTextHandler returns the console handler: slog text format without the
// time attribute, with TRACE rendered as a level name.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= traceLevelValue {
					a.Value = slog.StringValue("TRACE")
				}
			}
			if a.Value.Kind() == slog.KindTime && tz != nil {
				a.Value = slog.TimeValue(a.Value.Time().In(tz))
			}
			return a
		},
	})
}

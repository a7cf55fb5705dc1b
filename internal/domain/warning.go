package domain

import "fmt"

// Warning codes for recoverable conditions.
const (
	WarnTriggerTimeFallback = "trigger_time_fallback"
	WarnFormatMismatch      = "format_mismatch"
	WarnRecordLength        = "record_length_mismatch"
	WarnUngroupedChannel    = "ungrouped_channel"
	WarnChannelConflict     = "channel_conflict"
	WarnMissingCoordinate   = "missing_coordinate"
)

// Warning is a non-fatal diagnostic: the input was usable, with caveats.
type Warning struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Code, w.Path, w.Message)
}

// Warnings accumulates diagnostics for one operation.
type Warnings []Warning

// Add appends a formatted warning.
func (ws *Warnings) Add(code, path, format string, args ...any) {
	*ws = append(*ws, Warning{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

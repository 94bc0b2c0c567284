// Package logging builds the slog loggers used by meshport.
//
// Records logged with a context carry the stage, asset id and correlation id
// stored on it. The console format leads with those fields so one conversion
// can be followed across components; JSON output uses ts/level/msg keys.
// WARN lines go through WarnWithContext or CleanupWarning so they always carry
// event_type, error_hint and impact.
package logging

package output

import "tavily-register/internal/domain/entity"

// DiagnosticsPort receives document snapshots and screenshots captured
// on retry and fatal phase outcomes. Failures to persist diagnostics are
// non-fatal; the engine only logs them.
type DiagnosticsPort interface {
	Capture(sessionID string, phase entity.Phase, diag *entity.Diagnostic) error
}

package analyzer

import "errors"

// ErrCapabilityNotImplemented is returned when AnalyzeChunk is called on an
// analyzer that has no analysis step. It signals a wiring bug and is never
// converted into a degraded analysis.
var ErrCapabilityNotImplemented = errors.New("analyzer: analyze capability not implemented")

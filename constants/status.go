package constants

// ProcessStatus is how far a single report got through the pipeline.
type ProcessStatus string

// Stable values (returned to batch callers and logged).
const (
	StatusQueued     ProcessStatus = "QUEUED"     // waiting for a worker
	StatusExtracted  ProcessStatus = "EXTRACTED"  // raw text available
	StatusStructured ProcessStatus = "STRUCTURED" // model output validated
	StatusPersisted  ProcessStatus = "PERSISTED"  // session and tests committed
	StatusFailed     ProcessStatus = "FAILED"     // terminal failure
)

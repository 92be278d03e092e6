package model

// Raw is one untyped record as returned by a source adapter, prior to
// validation. Family-specific logic must not operate on Raw past the
// validator.
type Raw map[string]any

// SkipWarning describes a record dropped by the upsert engine without
// aborting its batch.
type SkipWarning struct {
	Key    string
	Reason string
}

// UpsertResult is the outcome of applying one validated batch.
type UpsertResult struct {
	Inserted int
	Updated  int
	Skipped  []SkipWarning
}

// Result is what one scope's pipeline run reports to the orchestrator or CLI.
type Result struct {
	Scope     Scope
	Success   bool
	Processed int
	Rejected  int
	Inserted  int
	Updated   int
	Err       string
}

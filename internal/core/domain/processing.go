package domain

// ProcessingOptions selects which enrichment stages are re-run regardless of
// existing output. The zero value runs only missing work.
type ProcessingOptions struct {
	ForceSplit     bool
	ForceSummarize bool
	ForceTag       bool
}

// Any reports whether any force flag is set.
func (o ProcessingOptions) Any() bool {
	return o.ForceSplit || o.ForceSummarize || o.ForceTag
}

// Stage names an enrichment stage.
type Stage string

// Enrichment stages in execution order.
const (
	StageSplit     Stage = "split"
	StageSummarize Stage = "summarize"
	StageTag       Stage = "tag"
)

// StageOutcome is what a stage did during one pass.
type StageOutcome string

// Stage outcomes.
const (
	// OutcomeRan means the stage produced and persisted output.
	OutcomeRan StageOutcome = "ran"

	// OutcomeSkipped means existing output was kept.
	OutcomeSkipped StageOutcome = "skipped"

	// OutcomeNoOutput means the model produced nothing usable this pass.
	OutcomeNoOutput StageOutcome = "no_output"
)

// ProcessResult reports the per-stage outcomes for one document.
type ProcessResult struct {
	DocumentID int64
	Split      StageOutcome
	Summarize  StageOutcome
	Tag        StageOutcome

	// Chunks is the number of chunks written, when the split stage ran.
	Chunks int

	// Tags is the number of tags associated, when the tag stage ran.
	Tags int

	Processed bool
}

// SweepResult reports the outcome of an ensure-processed sweep.
type SweepResult struct {
	Eligible  int
	Processed int
	Failed    int
}

// BackfillResult reports the outcome of an embedding backfill pass.
type BackfillResult struct {
	Embedded int
	Failed   int
}

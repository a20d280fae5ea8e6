package domain

import "time"

// PipelinePolicy bundles the rate and batching parameters of the importer and
// the sweep. It replaces fixed sleeps scattered through the control flow.
type PipelinePolicy struct {
	// PageSize is the number of conversations requested per provider page.
	PageSize int

	// MaxConcurrency bounds parallel conversation processing within a page.
	MaxConcurrency int

	// BatchDelay is the pause between concurrent sub-batches.
	BatchDelay time.Duration

	// ParticipantBatch bounds parallel participant lookups.
	ParticipantBatch int

	// ParticipantDelay is the pause between participant sub-batches.
	ParticipantDelay time.Duration

	// DetailTimeout bounds each conversation detail fetch.
	DetailTimeout time.Duration

	// CallTimeout bounds each page listing and participant lookup.
	CallTimeout time.Duration

	// MaxPagesPerRun is the page ceiling of one importer invocation.
	// Zero means unbounded.
	MaxPagesPerRun int

	// SweepBatchSize is the number of documents processed per sweep batch.
	SweepBatchSize int

	// SweepDelay is the pause between sweep batches.
	SweepDelay time.Duration

	// EmbedBatchSize is the number of chunks embedded per request.
	EmbedBatchSize int
}

// DefaultPipelinePolicy returns the policy used when nothing is configured.
func DefaultPipelinePolicy() PipelinePolicy {
	return PipelinePolicy{
		PageSize:         25,
		MaxConcurrency:   5,
		BatchDelay:       time.Second,
		ParticipantBatch: 5,
		ParticipantDelay: 500 * time.Millisecond,
		DetailTimeout:    10 * time.Second,
		CallTimeout:      30 * time.Second,
		MaxPagesPerRun:   20,
		SweepBatchSize:   10,
		SweepDelay:       time.Second,
		EmbedBatchSize:   50,
	}
}

// WithDefaults fills zero fields from DefaultPipelinePolicy.
// For delays and MaxPagesPerRun zero means unset and a negative value disables them.
func (p PipelinePolicy) WithDefaults() PipelinePolicy {
	d := DefaultPipelinePolicy()
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	if p.MaxConcurrency <= 0 {
		p.MaxConcurrency = d.MaxConcurrency
	}
	if p.BatchDelay == 0 {
		p.BatchDelay = d.BatchDelay
	}
	if p.ParticipantBatch <= 0 {
		p.ParticipantBatch = d.ParticipantBatch
	}
	if p.ParticipantDelay == 0 {
		p.ParticipantDelay = d.ParticipantDelay
	}
	if p.DetailTimeout <= 0 {
		p.DetailTimeout = d.DetailTimeout
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	if p.MaxPagesPerRun == 0 {
		p.MaxPagesPerRun = d.MaxPagesPerRun
	}
	if p.SweepBatchSize <= 0 {
		p.SweepBatchSize = d.SweepBatchSize
	}
	if p.SweepDelay == 0 {
		p.SweepDelay = d.SweepDelay
	}
	if p.EmbedBatchSize <= 0 {
		p.EmbedBatchSize = d.EmbedBatchSize
	}
	if p.BatchDelay < 0 {
		p.BatchDelay = 0
	}
	if p.ParticipantDelay < 0 {
		p.ParticipantDelay = 0
	}
	if p.SweepDelay < 0 {
		p.SweepDelay = 0
	}
	if p.MaxPagesPerRun < 0 {
		p.MaxPagesPerRun = 0
	}
	return p
}

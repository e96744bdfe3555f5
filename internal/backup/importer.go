package backup

import (
	"context"
	"fmt"
)

// ImportContext carries the cross-entity state of one import run: the
// pk-mapping tables that translate exported surrogate ids into the target
// store's current ids. A fresh context is constructed per run; nothing is
// shared between runs.
type ImportContext struct {
	pkTables map[string]map[int64]int64
}

// NewImportContext creates an empty import context.
func NewImportContext() *ImportContext {
	return &ImportContext{
		pkTables: make(map[string]map[int64]int64),
	}
}

// MapPK records that the exported surrogate id oldPK of the given model now
// corresponds to newPK in the target store. Dependency entities populate
// these tables as they import; later entities resolve through them.
func (c *ImportContext) MapPK(model string, oldPK, newPK int64) {
	table, ok := c.pkTables[model]
	if !ok {
		table = make(map[int64]int64)
		c.pkTables[model] = table
	}
	table[oldPK] = newPK
}

// ResolvePK translates an exported surrogate id into the target store's id.
// The second return value reports whether the id is known; absence means the
// referenced record was not part of the import and was not found locally.
func (c *ImportContext) ResolvePK(model string, oldPK int64) (int64, bool) {
	table, ok := c.pkTables[model]
	if !ok {
		return 0, false
	}
	newPK, ok := table[oldPK]
	return newPK, ok
}

// Sink receives the persistence calls decided by an import run. The
// decision logic is identical in both modes; only the mutating calls differ.
type Sink interface {
	Create(fn func() error) error
	Update(fn func() error) error
}

// storeSink persists by executing the mutating calls.
type storeSink struct{}

func (storeSink) Create(fn func() error) error { return fn() }
func (storeSink) Update(fn func() error) error { return fn() }

// countingSink records intended actions without persisting. Used for dry
// runs: counters and branching match the real run exactly.
type countingSink struct {
	creates int
	updates int
}

func (s *countingSink) Create(func() error) error { s.creates++; return nil }
func (s *countingSink) Update(func() error) error { s.updates++; return nil }

func sinkFor(opts ImportOptions) Sink {
	if opts.DryRun {
		return &countingSink{}
	}
	return storeSink{}
}

// importOps is the per-entity reconciliation contract consumed by runImport.
// find reports whether a record already exists in the target store (by
// natural key); create and update perform the actual persistence. All three
// may fail per record without aborting the batch.
type importOps struct {
	find   func(ctx context.Context, rec Record) (bool, error)
	create func(ctx context.Context, rec Record) error
	update func(ctx context.Context, rec Record) error
}

// runImport drives the per-record state machine for one entity type:
// considered -> skipped | created | updated | errored. Per-record failures
// are appended to the result's error list with the record's natural key and
// do not abort the batch.
func runImport(ctx context.Context, model string, records []Record, opts ImportOptions, ops importOps) *ImportResult {
	result := &ImportResult{Model: model, DryRun: opts.DryRun}
	sink := sinkFor(opts)

	recordError := func(rec Record, stage string, err error) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s %v: %s: %v", model, rec.NaturalKey, stage, err))
	}

	for _, rec := range records {
		exists, err := ops.find(ctx, rec)
		if err != nil {
			recordError(rec, "lookup failed", err)
			continue
		}

		if exists {
			if opts.Mode == ImportModeCreateOnly {
				result.Skipped++
				continue
			}
			if err := sink.Update(func() error { return ops.update(ctx, rec) }); err != nil {
				recordError(rec, "update failed", err)
				continue
			}
			result.Updated++
		} else {
			if opts.Mode == ImportModeUpdateOnly {
				result.Skipped++
				continue
			}
			if err := sink.Create(func() error { return ops.create(ctx, rec) }); err != nil {
				recordError(rec, "create failed", err)
				continue
			}
			result.Created++
		}
	}

	return result
}

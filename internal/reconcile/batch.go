package reconcile

import (
	"context"

	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

type opKind string

const (
	opDeleteContent  opKind = "delete_content"
	opInsertContent  opKind = "insert_content"
	opInsertSnapshot opKind = "insert_engagement"
)

type journalEntry struct {
	op opKind
	id string
}

// batch applies import mutations one record at a time, keeping the store and
// the library in step and journaling every mutation that took effect.
// Nothing is rolled back; the journal is how partial completion is reported.
type batch struct {
	r       *Reconciler
	journal []journalEntry
}

func newBatch(r *Reconciler) *batch { return &batch{r: r} }

func (b *batch) deleteContent(ctx context.Context, id string) error {
	if err := b.r.store.DeleteContent(ctx, id); err != nil {
		metrics.IncStoreFailure(string(opDeleteContent))
		return err
	}
	if err := b.r.lib.RemoveContent(id); err != nil {
		return err
	}
	b.journal = append(b.journal, journalEntry{op: opDeleteContent, id: id})
	return nil
}

func (b *batch) insertContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error) {
	saved, err := b.r.store.InsertContent(ctx, item)
	if err != nil {
		metrics.IncStoreFailure(string(opInsertContent))
		return model.ContentItem{}, err
	}
	b.r.lib.AddContent(saved)
	b.journal = append(b.journal, journalEntry{op: opInsertContent, id: saved.ID})
	return saved, nil
}

func (b *batch) insertSnapshot(ctx context.Context, s model.EngagementSnapshot) (model.EngagementSnapshot, error) {
	saved, err := b.r.store.InsertSnapshot(ctx, s)
	if err != nil {
		metrics.IncStoreFailure(string(opInsertSnapshot))
		return model.EngagementSnapshot{}, err
	}
	b.r.lib.AddSnapshot(saved)
	b.journal = append(b.journal, journalEntry{op: opInsertSnapshot, id: saved.ID})
	return saved, nil
}

// ids returns the journaled ids of op, in application order.
func (b *batch) ids(op opKind) []string {
	var out []string
	for _, e := range b.journal {
		if e.op == op {
			out = append(out, e.id)
		}
	}
	return out
}

package dedupe

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// BatchReconciler writes reconciled translation lists back, one object at a
// time, in the order objects first appear in the batch.
type BatchReconciler struct {
	Writer ObjectWriter
	Log    *log.Logger

	// OnObject, when set, is called after each object with its outcome.
	OnObject func(objectID string, groups []DuplicateGroup, err error)
}

// NewBatchReconciler creates a reconciler that writes through w.
func NewBatchReconciler(w ObjectWriter, logger *log.Logger) *BatchReconciler {
	return &BatchReconciler{Writer: w, Log: logger}
}

func (b *BatchReconciler) logger() *log.Logger {
	if b.Log != nil {
		return b.Log
	}
	return log.Default()
}

// Apply reconciles and writes every object owning one of groups. All groups
// of one object go out in a single update. A failing object marks all its
// groups failed and the batch moves on. Cancellation is honoured between
// objects; objects not reached are reported failed.
func (b *BatchReconciler) Apply(ctx context.Context, groups []DuplicateGroup) BatchResult {
	result := BatchResult{Errors: make(map[string]error)}
	byObject := lo.GroupBy(groups, func(g DuplicateGroup) string { return g.ObjectID })

	for _, id := range objectOrder(groups) {
		items := byObject[id]

		var err error
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &WriteBackError{ObjectID: id, Op: OpCanceled, Err: ctxErr}
		} else {
			err = b.applyObject(ctx, id, items)
		}

		if err != nil {
			b.logger().Error("write-back failed", "object", id, "type", items[0].Type.Plural, "err", err)
			result.Failed = append(result.Failed, items...)
			result.Errors[id] = err
		} else {
			b.logger().Info("translations updated", "object", id, "type", items[0].Type.Plural, "groups", len(items))
			result.Succeeded = append(result.Succeeded, items...)
		}

		if b.OnObject != nil {
			b.OnObject(id, items, err)
		}
	}

	return result
}

func (b *BatchReconciler) applyObject(ctx context.Context, id string, items []DuplicateGroup) error {
	typ := items[0].Type

	fresh, err := b.Writer.FetchFresh(ctx, typ, id)
	if err != nil {
		return &WriteBackError{ObjectID: id, Op: OpFetch, Err: err}
	}

	if Stale(items[0], fresh.Translations) {
		b.logger().Warn("object changed since detection, reconciling against current copy", "object", id)
	}

	fresh.Translations = Reconcile(fresh.Translations, items)

	if err := b.Writer.WriteBack(ctx, typ, id, fresh); err != nil {
		return &WriteBackError{ObjectID: id, Op: OpWrite, Err: err}
	}
	return nil
}

package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// emitAudit writes one entry to the sink, swallowing failures. Auditing
// must never fail or block the primary operation.
func emitAudit(ctx context.Context, sink AuditSink, log zerolog.Logger, entry AuditEntry) {
	if sink == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := sink.LogAction(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("action", string(entry.Action)).
			Str("entity_id", entry.EntityID).
			Msg("audit entry dropped")
	}
}

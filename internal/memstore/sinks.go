package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/supplyops/internal/audit"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// AuditSink implements the audit port of every service.
type AuditSink struct{ s *Store }

// Audit returns the audit sink.
func (s *Store) Audit() *AuditSink { return &AuditSink{s: s} }

// Record appends an audit entry.
func (a *AuditSink) Record(ctx context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return a.s.tx(ctx, func(st *state) error {
		if log.At.IsZero() {
			log.At = a.s.stamp()
		}
		st.audit = append(st.audit, log)
		return nil
	})
}

// Entries returns a copy of every recorded audit entry.
func (a *AuditSink) Entries() []shared.AuditLog {
	var out []shared.AuditLog
	a.s.read(func(st *state) { out = append(out, st.audit...) })
	return out
}

// Window serves the audit timeline, newest first.
func (a *AuditSink) Window(ctx context.Context, q audit.WindowQuery) ([]audit.TimelineRow, error) {
	out := []audit.TimelineRow{}
	a.s.read(func(st *state) {
		skipped := 0
		for i := len(st.audit) - 1; i >= 0; i-- {
			l := st.audit[i]
			row := audit.TimelineRow{At: l.At, ActorID: l.ActorID, Action: l.Action, Entity: l.Entity, EntityID: l.EntityID, Meta: l.Meta}
			if !q.Filters.Matches(row) {
				continue
			}
			if skipped < q.Offset {
				skipped++
				continue
			}
			if q.Limit > 0 && len(out) >= q.Limit {
				return
			}
			out = append(out, row)
		}
	})
	return out, nil
}

// ApprovalSink implements requests.ApprovalPort.
type ApprovalSink struct{ s *Store }

// Approvals returns the approval trail sink.
func (s *Store) Approvals() *ApprovalSink { return &ApprovalSink{s: s} }

// Record appends an approval entry.
func (a *ApprovalSink) Record(ctx context.Context, log shared.ApprovalLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return a.s.tx(ctx, func(st *state) error {
		log.ID = st.next("approvals")
		if log.At.IsZero() {
			log.At = a.s.stamp()
		}
		st.approvals = append(st.approvals, log)
		return nil
	})
}

// List returns approvals for module/ref in recording order.
func (a *ApprovalSink) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	a.s.read(func(st *state) {
		for _, l := range st.approvals {
			if l.Module == module && l.RefID == ref {
				out = append(out, l)
			}
		}
	})
	return out, nil
}

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportLimit     = 5000
)

// Repository fetches audit rows.
type Repository interface {
	Window(ctx context.Context, q WindowQuery) ([]TimelineRow, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds the audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows, newest first.
func (s *Service) Timeline(ctx context.Context, caller rbac.Caller, filters TimelineFilters) (Result, error) {
	if err := rbac.Authorize(caller, rbac.OpAuditView); err != nil {
		return Result{}, err
	}
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filters.Page, filters.PageSize = page, pageSize

	rows, err := s.repo.Window(ctx, WindowQuery{Filters: filters, Offset: (page - 1) * pageSize, Limit: pageSize + 1})
	if err != nil {
		return Result{}, fmt.Errorf("audit timeline: %w", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row up to the export cap, ignoring paging.
func (s *Service) Export(ctx context.Context, caller rbac.Caller, filters TimelineFilters) ([]TimelineRow, error) {
	if err := rbac.Authorize(caller, rbac.OpAuditView); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return nil, err
	}
	rows, err := s.repo.Window(ctx, WindowQuery{Filters: filters, Limit: exportLimit})
	if err != nil {
		return nil, fmt.Errorf("audit export: %w", err)
	}
	return rows, nil
}

func checkRange(f TimelineFilters) error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	return nil
}

package repository

import (
	"context"

	"dealersign/internal/domain/entity"
)

// CompanyRepository reads the master registry the sweeper iterates.
type CompanyRepository interface {
	// ListActive returns every active company, ordered by id, so the sweep
	// visits tenants in a stable sequence.
	ListActive(ctx context.Context) ([]entity.Company, error)
	// ActiveMailProvider returns the company's active outbound provider, or
	// nil when none is configured.
	ActiveMailProvider(ctx context.Context, companyID int64) (*entity.MailProvider, error)
}

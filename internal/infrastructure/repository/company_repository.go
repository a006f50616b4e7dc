package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/database"
)

type companyRepository struct {
	db     *database.Database
	logger *zap.Logger
}

func NewCompanyRepository(db *database.Database, logger *zap.Logger) repository.CompanyRepository {
	return &companyRepository{db: db, logger: logger}
}

func (r *companyRepository) ListActive(ctx context.Context) ([]entity.Company, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, name, db_name, active, created_at
		FROM companies
		WHERE active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active companies: %w", err)
	}
	defer rows.Close()

	var companies []entity.Company
	for rows.Next() {
		var c entity.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.DBName, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate company rows: %w", err)
	}
	return companies, nil
}

func (r *companyRepository) ActiveMailProvider(ctx context.Context, companyID int64) (*entity.MailProvider, error) {
	var p entity.MailProvider
	err := r.db.DB.QueryRowContext(ctx, `
		SELECT company_id, provider, base_url, api_key, sender, active
		FROM company_mail_providers
		WHERE company_id = $1 AND active = TRUE
		ORDER BY id
		LIMIT 1
	`, companyID).Scan(&p.CompanyID, &p.Provider, &p.BaseURL, &p.APIKey, &p.Sender, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mail provider: %w", err)
	}
	return &p, nil
}

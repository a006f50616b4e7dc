package entity

import "time"

// Company is a row in the master registry. DBName is the tenant database on
// the mongo cluster holding that company's templates and documents.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DBName    string    `json:"db_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MailProvider is a company's configured outbound email provider. Credentials
// arrive pre-decrypted from the settings layer.
type MailProvider struct {
	CompanyID int64  `json:"company_id"`
	Provider  string `json:"provider"`
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	Sender    string `json:"sender"`
	Active    bool   `json:"active"`
}

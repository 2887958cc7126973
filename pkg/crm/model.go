// Package crm holds the bun models of the CRM tables that are mirrored between
// production and development.
package crm

import (
	"time"

	"github.com/uptrace/bun"
)

// Customer statuses used across the onboarding pipeline.
const (
	StatusLead       = "Lead"
	StatusContacted  = "Contacted"
	StatusOnboarding = "Onboarding"
	StatusSigned     = "Signed"
	StatusLost       = "Lost"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleSales  = "sales"
	RoleViewer = "viewer"
)

// CustomerDao maps to the 'customers' table.
type CustomerDao struct {
	bun.BaseModel     `bun:"table:customers,alias:c"`
	ID                int64     `bun:"id,pk,autoincrement"`
	CompanyName       string    `bun:"company_name,notnull,type:varchar(255)"`
	ContactName       *string   `bun:"contact_name,type:varchar(255)"`
	Email             *string   `bun:"email,type:varchar(255)"`
	Phone             *string   `bun:"phone,type:varchar(50)"`
	Status            string    `bun:"status,notnull,type:varchar(50),default:'Lead'"`
	AffiliatePartner  *string   `bun:"affiliate_partner,type:varchar(255)"`
	NextStep          *string   `bun:"next_step,type:text"`
	AssignedExecutive *string   `bun:"assigned_executive,type:varchar(255)"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// CustomerNoteDao maps to the 'customer_notes' table.
type CustomerNoteDao struct {
	bun.BaseModel `bun:"table:customer_notes,alias:cn"`
	ID            int64     `bun:"id,pk,autoincrement"`
	CustomerID    int64     `bun:"customer_id,notnull"`
	Content       string    `bun:"content,notnull,type:text"`
	CreatedBy     *string   `bun:"created_by,type:varchar(100)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// CustomerFileDao maps to the 'customer_files' table. Only metadata lives here.
type CustomerFileDao struct {
	bun.BaseModel `bun:"table:customer_files,alias:cf"`
	ID            int64     `bun:"id,pk,autoincrement"`
	CustomerID    int64     `bun:"customer_id,notnull"`
	OriginalName  string    `bun:"original_name,notnull,type:varchar(255)"`
	FilePath      string    `bun:"file_path,notnull,type:varchar(500)"`
	MimeType      *string   `bun:"mime_type,type:varchar(100)"`
	SizeBytes     *int64    `bun:"size_bytes"`
	UploadedAt    time.Time `bun:"uploaded_at,nullzero,notnull,default:current_timestamp"`
}

// UserDao maps to the 'users' table.
type UserDao struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Username      string    `bun:"username,unique,notnull,type:varchar(100)"`
	Email         string    `bun:"email,notnull,type:varchar(255)"`
	PasswordHash  string    `bun:"password_hash,notnull,type:varchar(255)"`
	Role          string    `bun:"role,notnull,type:varchar(20),default:'sales'"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// AffiliateDao maps to the 'affiliates' table.
type AffiliateDao struct {
	bun.BaseModel `bun:"table:affiliates,alias:a"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Name          string    `bun:"name,notnull,type:varchar(255)"`
	Email         *string   `bun:"email,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// AffiliateAEDao maps to the 'affiliate_aes' table: account executives working for an affiliate.
type AffiliateAEDao struct {
	bun.BaseModel `bun:"table:affiliate_aes,alias:ae"`
	ID            int64     `bun:"id,pk,autoincrement"`
	AffiliateID   int64     `bun:"affiliate_id,notnull"`
	Name          string    `bun:"name,notnull,type:varchar(255)"`
	Email         *string   `bun:"email,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const NotAvailable = "N/A"

const (
	ImportanceHigh = "HIGHLY IMPORTANT"
	ImportanceLow  = "LESS IMPORTANT"
)

// Importances is the closed label set of the importance classifier.
var Importances = []string{ImportanceHigh, ImportanceLow}

// SignatureFields are the contact details extracted from a signature block.
type SignatureFields struct {
	Name     string `json:"name"`
	Company  string `json:"company"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	JobTitle string `json:"job_title"`
}

// Normalize replaces empty fields with N/A.
func (f SignatureFields) Normalize() SignatureFields {
	fill := func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return NotAvailable
		}
		return v
	}
	return SignatureFields{
		Name:     fill(f.Name),
		Company:  fill(f.Company),
		Address:  fill(f.Address),
		Phone:    fill(f.Phone),
		JobTitle: fill(f.JobTitle),
	}
}

// EmptySignature has every field set to N/A.
func EmptySignature() SignatureFields {
	return SignatureFields{}.Normalize()
}

// ImportanceInput is the material the importance classifier looks at.
type ImportanceInput struct {
	Sender  string
	Subject string
	To      string
	Cc      string
	Body    string
}

type ContactRecord struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	Company    string    `json:"company" db:"company"`
	Address    string    `json:"address" db:"address"`
	Phone      string    `json:"phone" db:"phone"`
	JobTitle   string    `json:"job_title" db:"job_title"`
	Importance string    `json:"importance" db:"importance"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func NewContactRecord(email string, fields SignatureFields, importance string) *ContactRecord {
	now := time.Now().UTC()
	fields = fields.Normalize()
	return &ContactRecord{
		ID:         uuid.New().String(),
		Email:      NormalizeEmail(email),
		Name:       fields.Name,
		Company:    fields.Company,
		Address:    fields.Address,
		Phone:      fields.Phone,
		JobTitle:   fields.JobTitle,
		Importance: importance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NormalizeEmail reduces a From-style header ("Alice <Alice@Example.com>") to
// its lower-cased address. Unparseable input is lower-cased and trimmed.
func NormalizeEmail(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(header))
}

// DisplayName returns the display-name part of a From-style header.
func DisplayName(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.TrimSpace(addr.Name)
	}
	return ""
}

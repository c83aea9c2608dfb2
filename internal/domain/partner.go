package domain

import (
	"slices"
	"strings"
	"time"
)

// PartnerStatus is the lifecycle state of a RetailPartner.
type PartnerStatus string

const (
	PartnerPending        PartnerStatus = "pending"
	PartnerActive         PartnerStatus = "active"
	PartnerNeedsAttention PartnerStatus = "needs_attention"
	PartnerInactive       PartnerStatus = "inactive"
)

// Valid reports whether s is a known partner status.
func (s PartnerStatus) Valid() bool {
	switch s {
	case PartnerPending, PartnerActive, PartnerNeedsAttention, PartnerInactive:
		return true
	}
	return false
}

// PartnerMetadata holds free-form partner attributes.
type PartnerMetadata struct {
	Tags []string `json:"tags"`
}

// RetailPartner is a store that posts a brand's content. BrandID never changes after creation.
type RetailPartner struct {
	ID             int64           `json:"id"`
	BrandID        int64           `json:"brandId"`
	Name           string          `json:"name"`
	ContactName    string          `json:"contactName,omitempty"`
	ContactEmail   string          `json:"contactEmail"`
	ContactPhone   string          `json:"contactPhone,omitempty"`
	Address        string          `json:"address,omitempty"`
	FooterTemplate string          `json:"footerTemplate,omitempty"`
	Status         PartnerStatus   `json:"status"`
	UserID         *int64          `json:"userId,omitempty"`
	ConnectionDate *time.Time      `json:"connectionDate,omitempty"`
	Metadata       PartnerMetadata `json:"metadata"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreatePartnerRequest is the body for POST /retail-partners and each bulk item.
// BrandID is honored for admins only.
type CreatePartnerRequest struct {
	BrandID        *int64          `json:"brandId,omitempty"`
	Name           string          `json:"name"`
	ContactName    string          `json:"contactName"`
	ContactEmail   string          `json:"contactEmail"`
	ContactPhone   string          `json:"contactPhone"`
	Address        string          `json:"address"`
	FooterTemplate string          `json:"footerTemplate"`
	Metadata       PartnerMetadata `json:"metadata"`
}

// MissingFieldsMessage is reported for partners without name or contact email.
const MissingFieldsMessage = "Missing required fields: name and contactEmail are required"

// Validate checks the required fields.
func (r *CreatePartnerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.ContactEmail) == "" {
		return &ErrValidation{Message: MissingFieldsMessage}
	}
	if !strings.Contains(r.ContactEmail, "@") {
		return &ErrValidation{Field: "contactEmail", Message: "must be an email address"}
	}
	return nil
}

// RetailPartnerPatch is a partial update. There is deliberately no brandId field.
type RetailPartnerPatch struct {
	Name           *string          `json:"name,omitempty"`
	ContactName    *string          `json:"contactName,omitempty"`
	ContactEmail   *string          `json:"contactEmail,omitempty"`
	ContactPhone   *string          `json:"contactPhone,omitempty"`
	Address        *string          `json:"address,omitempty"`
	FooterTemplate *string          `json:"footerTemplate,omitempty"`
	Status         *PartnerStatus   `json:"status,omitempty"`
	Metadata       *PartnerMetadata `json:"metadata,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p RetailPartnerPatch) IsEmpty() bool {
	return p.Name == nil && p.ContactName == nil && p.ContactEmail == nil &&
		p.ContactPhone == nil && p.Address == nil && p.FooterTemplate == nil &&
		p.Status == nil && p.Metadata == nil
}

// PartnerSelfService keeps only the fields a partner user may change on its own row.
func (p RetailPartnerPatch) PartnerSelfService() RetailPartnerPatch {
	return RetailPartnerPatch{
		ContactName:    p.ContactName,
		ContactEmail:   p.ContactEmail,
		ContactPhone:   p.ContactPhone,
		Address:        p.Address,
		FooterTemplate: p.FooterTemplate,
	}
}

// Validate checks the values the patch sets.
func (p RetailPartnerPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &ErrValidation{Field: "name", Message: "cannot be empty"}
	}
	if p.ContactEmail != nil && !strings.Contains(*p.ContactEmail, "@") {
		return &ErrValidation{Field: "contactEmail", Message: "must be an email address"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown status"}
	}
	return nil
}

// Apply merges the patch into the partner. Entering the active status from any
// other status stamps ConnectionDate with now; staying active leaves it alone.
// It reports whether anything changed.
func (rp *RetailPartner) Apply(p RetailPartnerPatch, now time.Time) bool {
	changed := false
	setString := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setString(&rp.Name, p.Name)
	setString(&rp.ContactName, p.ContactName)
	setString(&rp.ContactEmail, p.ContactEmail)
	setString(&rp.ContactPhone, p.ContactPhone)
	setString(&rp.Address, p.Address)
	setString(&rp.FooterTemplate, p.FooterTemplate)
	if p.Metadata != nil {
		rp.Metadata = PartnerMetadata{Tags: slices.Clone(p.Metadata.Tags)}
		changed = true
	}
	if p.Status != nil && *p.Status != rp.Status {
		if *p.Status == PartnerActive {
			t := now
			rp.ConnectionDate = &t
		}
		rp.Status = *p.Status
		changed = true
	}
	if changed {
		rp.UpdatedAt = now
	}
	return changed
}

// BulkImportRequest is the body for POST /retail-partners/bulk.
type BulkImportRequest struct {
	BrandID  *int64                 `json:"brandId,omitempty"`
	Partners []CreatePartnerRequest `json:"partners"`
}

// BulkItemError reports one rejected bulk item by its zero-based index.
type BulkItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkImportResult reports successes and per-item failures together.
type BulkImportResult struct {
	Created  int             `json:"created"`
	Partners []RetailPartner `json:"partners"`
	Errors   []BulkItemError `json:"errors"`
}

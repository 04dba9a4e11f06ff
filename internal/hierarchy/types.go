package hierarchy

import (
	"treasura.org/internal/lifecycle"
)

// Relationship statuses. Only Active edges participate in traversal.
const (
	RelationshipActive    = "Active"
	RelationshipSuspended = "Suspended"
	RelationshipInactive  = "Inactive"
)

// Entity is one node of the master hierarchy: a legal entity or business
// unit. The descriptive fields past Level are opaque payload; nothing in the
// traversal or lifecycle logic reads them.
type Entity struct {
	EntityID       string           `json:"entity_id"`
	EntityName     string           `json:"entity_name"`
	ParentName     *string          `json:"parentname"`
	IsTopLevel     bool             `json:"is_top_level_entity"`
	Level          *string          `json:"level"`
	ApprovalStatus lifecycle.Status `json:"approval_status"`
	IsDeleted      bool             `json:"is_deleted"`
	Comments       *string          `json:"comments,omitempty"`

	Address                   *string `json:"address,omitempty"`
	ContactPhone              *string `json:"contact_phone,omitempty"`
	ContactEmail              *string `json:"contact_email,omitempty"`
	RegistrationNumber        *string `json:"registration_number,omitempty"`
	PanGST                    *string `json:"pan_gst,omitempty"`
	LegalEntityIdentifier     *string `json:"legal_entity_identifier,omitempty"`
	TaxIdentificationNumber   *string `json:"tax_identification_number,omitempty"`
	DefaultCurrency           *string `json:"default_currency,omitempty"`
	AssociatedBusinessUnits   *string `json:"associated_business_units,omitempty"`
	ReportingCurrency         *string `json:"reporting_currency,omitempty"`
	UniqueIdentifier          *string `json:"unique_identifier,omitempty"`
	LegalEntityType           *string `json:"legal_entity_type,omitempty"`
	FxTradingAuthority        *string `json:"fx_trading_authority,omitempty"`
	InternalFxTradingLimit    *string `json:"internal_fx_trading_limit,omitempty"`
	AssociatedTreasuryContact *string `json:"associated_treasury_contact,omitempty"`
}

// Relationship is a directed parent→child edge. A child has at most one
// parent (unique on child id).
type Relationship struct {
	ID             int64  `json:"relationship_id"`
	ParentEntityID string `json:"parent_entity_id"`
	ChildEntityID  string `json:"child_entity_id"`
	Status         string `json:"status"`
}

// Node is one entry of the rendered hierarchy forest.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Data     Entity  `json:"data"`
	Children []*Node `json:"children"`
}

// CreateInput carries the fields accepted when creating an entity.
type CreateInput struct {
	EntityName string  `json:"entity_name"`
	ParentName *string `json:"parentname"`
	IsTopLevel bool    `json:"is_top_level_entity"`
	Level      *string `json:"level"`

	Address                   *string `json:"address"`
	ContactPhone              *string `json:"contact_phone"`
	ContactEmail              *string `json:"contact_email"`
	RegistrationNumber        *string `json:"registration_number"`
	PanGST                    *string `json:"pan_gst"`
	LegalEntityIdentifier     *string `json:"legal_entity_identifier"`
	TaxIdentificationNumber   *string `json:"tax_identification_number"`
	DefaultCurrency           *string `json:"default_currency"`
	AssociatedBusinessUnits   *string `json:"associated_business_units"`
	ReportingCurrency         *string `json:"reporting_currency"`
	UniqueIdentifier          *string `json:"unique_identifier"`
	LegalEntityType           *string `json:"legal_entity_type"`
	FxTradingAuthority        *string `json:"fx_trading_authority"`
	InternalFxTradingLimit    *string `json:"internal_fx_trading_limit"`
	AssociatedTreasuryContact *string `json:"associated_treasury_contact"`
}

// Update is the allow-listed set of updatable columns. Request bodies never
// drive SET clauses directly; only fields present here can change.
type Update struct {
	ParentName *string `json:"parentname"`
	IsTopLevel *bool   `json:"is_top_level_entity"`
	Level      *string `json:"level"`
	Comments   *string `json:"comments"`

	Address                   *string `json:"address"`
	ContactPhone              *string `json:"contact_phone"`
	ContactEmail              *string `json:"contact_email"`
	RegistrationNumber        *string `json:"registration_number"`
	PanGST                    *string `json:"pan_gst"`
	LegalEntityIdentifier     *string `json:"legal_entity_identifier"`
	TaxIdentificationNumber   *string `json:"tax_identification_number"`
	DefaultCurrency           *string `json:"default_currency"`
	AssociatedBusinessUnits   *string `json:"associated_business_units"`
	ReportingCurrency         *string `json:"reporting_currency"`
	UniqueIdentifier          *string `json:"unique_identifier"`
	LegalEntityType           *string `json:"legal_entity_type"`
	FxTradingAuthority        *string `json:"fx_trading_authority"`
	InternalFxTradingLimit    *string `json:"internal_fx_trading_limit"`
	AssociatedTreasuryContact *string `json:"associated_treasury_contact"`
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.ParentName == nil && u.IsTopLevel == nil && u.Level == nil && u.Comments == nil &&
		u.Address == nil && u.ContactPhone == nil && u.ContactEmail == nil &&
		u.RegistrationNumber == nil && u.PanGST == nil && u.LegalEntityIdentifier == nil &&
		u.TaxIdentificationNumber == nil && u.DefaultCurrency == nil &&
		u.AssociatedBusinessUnits == nil && u.ReportingCurrency == nil &&
		u.UniqueIdentifier == nil && u.LegalEntityType == nil && u.FxTradingAuthority == nil &&
		u.InternalFxTradingLimit == nil && u.AssociatedTreasuryContact == nil
}

// SyncResult reports what a relationship sync inserted.
type SyncResult struct {
	RelationshipsAdded int            `json:"relationshipsAdded"`
	Details            []RelationPair `json:"details"`
}

// RelationPair is one inserted edge.
type RelationPair struct {
	ParentID string `json:"parentId"`
	ChildID  string `json:"childId"`
}

// BulkOutcome reports a split bulk approval: deletion confirmations remove
// rows, everything else transitions to Approved.
type BulkOutcome struct {
	Deleted  []string `json:"deleted"`
	Approved []Entity `json:"approved"`
}

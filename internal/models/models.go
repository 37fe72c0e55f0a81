package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BOQ statuses
const (
	BoqStatusDraft     = "DRAFT"
	BoqStatusSubmitted = "SUBMITTED"
	BoqStatusClosed    = "CLOSED"
)

// Supplier access statuses
const (
	AccessStatusPending  = "PENDING"
	AccessStatusViewed   = "VIEWED"
	AccessStatusDeclined = "DECLINED"
	AccessStatusQuoted   = "QUOTED"
	AccessStatusExpired  = "EXPIRED"
)

// Supplier account and onboarding statuses
const (
	SupplierAccountActive    = "ACTIVE"
	SupplierAccountSuspended = "SUSPENDED"
	OnboardingApproved       = "APPROVED"
	OnboardingPending        = "PENDING"
	OnboardingRejected       = "REJECTED"
)

// Boq is a bill of quantities derived from an RFQ
type Boq struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	BoqNumber string         `gorm:"not null;uniqueIndex" json:"boq_number"`
	Title     string         `json:"title"`
	RfqID     *uuid.UUID     `gorm:"type:uuid" json:"rfq_id"`
	Status    string         `gorm:"not null;default:DRAFT" json:"status"`
	Rfq       *Rfq           `gorm:"foreignKey:RfqID" json:"-"`
}

// Rfq is a customer's request for quotation
type Rfq struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	RfqNumber   string         `gorm:"not null;uniqueIndex" json:"rfq_number"`
	ProjectName string         `json:"project_name"`
	LineItems   []RfqLineItem  `gorm:"foreignKey:RfqID" json:"-"`
}

// RfqItemDetails is the type-specific payload of an RFQ line item. Zero values mean
// "not provided" and are replaced by consolidation defaults.
type RfqItemDetails struct {
	NominalBoreMm       int    `json:"nominalBoreMm,omitempty"`
	BranchNominalBoreMm int    `json:"branchNominalBoreMm,omitempty"`
	EndConfiguration    string `json:"endConfiguration,omitempty"`
	CalculatedPipeCount int    `json:"calculatedPipeCount,omitempty"`
	AddBlankFlange      bool   `json:"addBlankFlange,omitempty"`
	BlankFlangeCount    int    `json:"blankFlangeCount,omitempty"`
}

// RfqLineItem is one row of an RFQ
type RfqLineItem struct {
	ID         uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	RfqID      uuid.UUID                          `gorm:"type:uuid;not null;uniqueIndex:idx_rfq_line" json:"rfq_id"`
	LineNumber int                                `gorm:"not null;uniqueIndex:idx_rfq_line" json:"line_number"`
	ItemType   string                             `gorm:"not null" json:"item_type"`
	Quantity   int                                `json:"quantity"`
	Details    datatypes.JSONType[RfqItemDetails] `gorm:"type:jsonb;not null" json:"details"`
}

// SectionItem is one consolidated line inside a BOQ section
type SectionItem struct {
	LineNumber    int             `json:"lineNumber"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	UnitWeightKg  decimal.Decimal `json:"unitWeightKg"`
	TotalWeightKg decimal.Decimal `json:"totalWeightKg"`
	Entries       []int           `json:"entries,omitempty"`
}

// BoqSection is a persisted snapshot of one consolidated product family of a BOQ
type BoqSection struct {
	ID            uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
	BoqID         uuid.UUID                         `gorm:"type:uuid;not null;uniqueIndex:idx_boq_section_type" json:"boq_id"`
	SectionType   string                            `gorm:"not null;uniqueIndex:idx_boq_section_type" json:"section_type"`
	CapabilityKey string                            `json:"capability_key"`
	SectionTitle  string                            `gorm:"not null" json:"section_title"`
	Items         datatypes.JSONType[[]SectionItem] `gorm:"type:jsonb;not null" json:"items"`
	ItemCount     int                               `gorm:"not null" json:"item_count"`
	TotalWeightKg decimal.Decimal                   `gorm:"type:numeric(14,3);not null" json:"total_weight_kg"`
	Position      int                               `gorm:"not null;default:0" json:"position"`
}

// CustomerInfo is the customer contact snapshot shown to suppliers
type CustomerInfo struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// ProjectInfo is the project snapshot shown to suppliers
type ProjectInfo struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description,omitempty"`
	RequiredDate string `json:"requiredDate,omitempty"`
}

// QuotePayload is a supplier's (draft or final) quotation for a BOQ
type QuotePayload struct {
	PricingInputs  map[string]interface{}             `json:"pricingInputs,omitempty"`
	UnitPrices     map[string]map[int]decimal.Decimal `json:"unitPrices" validate:"required,min=1,dive,keys,required,endkeys,dive,gte=0"`
	WeldUnitPrices map[string]decimal.Decimal         `json:"weldUnitPrices,omitempty" validate:"omitempty,dive,gte=0"`
	Notes          string                             `json:"notes,omitempty" validate:"max=4000"`
}

// BoqSupplierAccess grants a supplier visibility of some sections of a BOQ and tracks
// the supplier's response
type BoqSupplierAccess struct {
	ID                 uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt          time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
	BoqID              uuid.UUID                         `gorm:"type:uuid;not null;uniqueIndex:idx_boq_supplier" json:"boq_id"`
	SupplierProfileID  uuid.UUID                         `gorm:"type:uuid;not null;uniqueIndex:idx_boq_supplier;index" json:"supplier_profile_id"`
	AllowedSections    pq.StringArray                    `gorm:"type:text[];not null" json:"allowed_sections"`
	Status             string                            `gorm:"not null;index" json:"status"`
	NotificationSentAt *time.Time                        `json:"notification_sent_at"`
	ViewedAt           *time.Time                        `json:"viewed_at"`
	RespondedAt        *time.Time                        `json:"responded_at"`
	QuoteSavedAt       *time.Time                        `json:"quote_saved_at"`
	QuoteSubmittedAt   *time.Time                        `json:"quote_submitted_at"`
	ReminderSentAt     *time.Time                        `json:"reminder_sent_at"`
	DeclineReason      *string                           `json:"decline_reason"`
	ReminderDays       *int                              `json:"reminder_days"`
	CustomerInfo       datatypes.JSONType[*CustomerInfo] `gorm:"type:jsonb;not null;default:'null'" json:"customer_info"`
	ProjectInfo        datatypes.JSONType[*ProjectInfo]  `gorm:"type:jsonb;not null;default:'null'" json:"project_info"`
	QuoteData          datatypes.JSONType[*QuotePayload] `gorm:"type:jsonb;not null;default:'null'" json:"quote_data"`
	Boq                *Boq                              `gorm:"foreignKey:BoqID" json:"-"`
}

// IsTerminal reports whether the supplier has responded to the BOQ
func (a *BoqSupplierAccess) IsTerminal() bool {
	return a.Status == AccessStatusQuoted || a.Status == AccessStatusDeclined
}

// User is a platform login
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
}

// SupplierCompany is the registered company behind a supplier profile
type SupplierCompany struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	LegalName   string    `json:"legal_name"`
	TradingName string    `json:"trading_name"`
}

// SupplierProfile is a supplier account
type SupplierProfile struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
	UserID        *uuid.UUID       `gorm:"type:uuid" json:"user_id"`
	CompanyID     *uuid.UUID       `gorm:"type:uuid" json:"company_id"`
	FirstName     string           `json:"first_name"`
	LastName      string           `json:"last_name"`
	AccountStatus string           `gorm:"not null;index" json:"account_status"`
	User          *User            `gorm:"foreignKey:UserID" json:"-"`
	Company       *SupplierCompany `gorm:"foreignKey:CompanyID" json:"-"`
}

// Email returns the login email of the supplier, empty when unknown
func (p *SupplierProfile) Email() string {
	if p.User == nil {
		return ""
	}
	return p.User.Email
}

// DisplayName returns the trading name, the legal name or the contact's full name
func (p *SupplierProfile) DisplayName() string {
	if p.Company != nil {
		if p.Company.TradingName != "" {
			return p.Company.TradingName
		}
		if p.Company.LegalName != "" {
			return p.Company.LegalName
		}
	}
	return p.FirstName + " " + p.LastName
}

// SupplierOnboarding tracks the approval of a supplier
type SupplierOnboarding struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	SupplierID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"supplier_id"`
	Status     string           `gorm:"not null;index" json:"status"`
	Supplier   *SupplierProfile `gorm:"foreignKey:SupplierID" json:"-"`
}

// SupplierCapability is a product category a supplier declares it can supply
type SupplierCapability struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	SupplierProfileID uuid.UUID `gorm:"type:uuid;not null;index" json:"supplier_profile_id"`
	ProductCategory   string    `gorm:"not null" json:"product_category"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
}

// SetupModels runs the schema migrations for every model
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&SupplierCompany{},
		&SupplierProfile{},
		&SupplierOnboarding{},
		&SupplierCapability{},
		&Rfq{},
		&RfqLineItem{},
		&Boq{},
		&BoqSection{},
		&BoqSupplierAccess{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to auto-migrate models")
	}
	return nil
}

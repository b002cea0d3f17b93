package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionDirection distinguishes money collected from money returned.
type TransactionDirection string

const (
	DirectionCharge TransactionDirection = "charge"
	DirectionRefund TransactionDirection = "refund"
)

// PaymentStatus represents the lifecycle state of a transaction. The set is
// open; gateways may report states we pass through unmodified.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusPaid       PaymentStatus = "paid"
	StatusFailed     PaymentStatus = "failed"
)

// IsTerminalSuccess reports whether the status means the gateway has settled
// the money movement.
func (s PaymentStatus) IsTerminalSuccess() bool {
	return s == StatusCompleted || s == StatusPaid
}

// PaymentMethodInvoice marks transactions settled out-of-band via invoice.
const PaymentMethodInvoice = "invoice"

// SetupIntentPrefix identifies setup-only intents, which never carry funds
// and are therefore never refundable.
const SetupIntentPrefix = "seti_"

// IsCardMethod reports whether a free-text payment method denotes a card
// payment. Card-ness is a substring match so variants like "credit card" or
// "Card (Visa)" all qualify.
func IsCardMethod(method string) bool {
	return strings.Contains(strings.ToLower(method), "card")
}

// IsUsablePaymentReference reports whether a gateway identifier can be
// refunded against: non-empty and not a setup-only intent.
func IsUsablePaymentReference(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, SetupIntentPrefix)
}

// JSONB custom type for PostgreSQL jsonb columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// TransactionMetadataVersion is the current schema version written into the
// metadata blob. Consumers must branch on it before reading fields.
const TransactionMetadataVersion = 1

// AddOnSnapshot captures a booked add-on at charge time.
type AddOnSnapshot struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// TransactionMetadata is the typed payload describing what a charge paid
// for. It is persisted as jsonb with an explicit schema version.
type TransactionMetadata struct {
	SchemaVersion int             `json:"schemaVersion"`
	GuestCount    int             `json:"guestCount,omitempty"`
	AddOns        []AddOnSnapshot `json:"addOns,omitempty"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot,omitempty"`
	ScheduleDate  string          `json:"scheduleDate,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

func (m TransactionMetadata) Value() (driver.Value, error) {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = TransactionMetadataVersion
	}
	return json.Marshal(m)
}

func (m *TransactionMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = TransactionMetadata{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// PaymentTransaction is one ledger row: a charge attempt or a refund attempt.
// Refund rows always reference the charge they reduce via
// ParentTransactionID; charge rows never carry a parent. Use
// NewChargeTransaction / NewRefundTransaction so that linkage cannot be
// constructed wrong.
type PaymentTransaction struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID      string     `gorm:"type:varchar(255);not null;index:idx_payment_transactions_tenant" json:"tenantId"`
	ReservationID *uuid.UUID `gorm:"type:uuid;index:idx_payment_transactions_reservation" json:"reservationId,omitempty"`

	// Classification
	Direction       TransactionDirection `gorm:"column:transaction_direction;type:varchar(20);not null;index:idx_payment_transactions_direction" json:"transactionDirection"`
	TransactionType string               `gorm:"type:varchar(100)" json:"transactionType,omitempty"`
	PaymentMethod   string               `gorm:"type:varchar(100)" json:"paymentMethod,omitempty"`
	PaymentStatus   PaymentStatus        `gorm:"type:varchar(50);not null;index:idx_payment_transactions_status" json:"paymentStatus"`

	// Monetary fields. RefundedAmount and AvailableRefundAmount are cached
	// aggregates, meaningful only on charge rows; when absent they are
	// rederived from completed child refunds. Gateway refund history is
	// authoritative over both.
	Amount                decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	RefundedAmount        decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"refundedAmount,omitempty"`
	AvailableRefundAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"availableRefundAmount,omitempty"`
	IsRefundable          bool                `gorm:"default:false" json:"isRefundable"`

	// Linkage: set only on refund rows
	ParentTransactionID *uuid.UUID `gorm:"type:uuid;index:idx_payment_transactions_parent" json:"parentTransactionId,omitempty"`

	// External gateway references
	PaymentIntentID string `gorm:"column:payment_intent_id;type:varchar(255);index:idx_payment_transactions_intent" json:"paymentIntentId,omitempty"`
	PaymentMethodID string `gorm:"column:payment_method_id;type:varchar(255)" json:"paymentMethodId,omitempty"`
	StripePaymentID string `gorm:"column:stripe_payment_id;type:varchar(255);index:idx_payment_transactions_stripe" json:"stripePaymentId,omitempty"`

	// Auxiliary
	Metadata       TransactionMetadata `gorm:"type:jsonb" json:"metadata,omitempty"`
	InvoiceMessage string              `gorm:"type:text" json:"invoiceMessage,omitempty"`
	DueDate        *time.Time          `json:"dueDate,omitempty"`
	LastRefundDate *time.Time          `json:"lastRefundDate,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_payment_transactions_created" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Relationships
	ChildRefunds []PaymentTransaction `gorm:"foreignKey:ParentTransactionID" json:"childRefunds,omitempty"`
}

// TableName specifies the table name for PaymentTransaction
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// NewChargeTransaction builds a charge row. Parent linkage is never set on
// charges.
func NewChargeTransaction(tenantID string, reservationID *uuid.UUID, amount decimal.Decimal) *PaymentTransaction {
	return &PaymentTransaction{
		TenantID:      tenantID,
		ReservationID: reservationID,
		Direction:     DirectionCharge,
		Amount:        amount,
		PaymentStatus: StatusPending,
	}
}

// NewRefundTransaction builds a refund row against an existing charge. The
// parent is mandatory; there is no way to construct a refund without one.
func NewRefundTransaction(parent *PaymentTransaction, amount decimal.Decimal) *PaymentTransaction {
	parentID := parent.ID
	return &PaymentTransaction{
		TenantID:            parent.TenantID,
		ReservationID:       parent.ReservationID,
		Direction:           DirectionRefund,
		Amount:              amount,
		PaymentStatus:       StatusPending,
		ParentTransactionID: &parentID,
		PaymentIntentID:     parent.PaymentIntentID,
		PaymentMethod:       parent.PaymentMethod,
	}
}

// IsCharge reports whether this row collects money.
func (t *PaymentTransaction) IsCharge() bool {
	return t.Direction == DirectionCharge
}

// IsRefund reports whether this row returns money.
func (t *PaymentTransaction) IsRefund() bool {
	return t.Direction == DirectionRefund
}

// GatewayReference returns the identifier usable against the gateway,
// preferring the payment intent over the raw payment id.
func (t *PaymentTransaction) GatewayReference() string {
	if t.PaymentIntentID != "" {
		return t.PaymentIntentID
	}
	return t.StripePaymentID
}

// Refund is one row per executed refund call against the gateway, kept
// separately from the transaction ledger for audit.
type Refund struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ReservationID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_refunds_reservation" json:"reservationId"`
	PaymentIntentID    string          `gorm:"column:payment_intent_id;type:varchar(255);not null;index:idx_refunds_intent" json:"paymentIntentId"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status             string          `gorm:"type:varchar(50)" json:"status"`
	ConnectedAccountID string          `gorm:"type:varchar(255)" json:"connectedAccountId,omitempty"`
	CreatedAt          time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for Refund
func (Refund) TableName() string {
	return "refunds"
}

// Reservation is owned by the reservations service; this core only reads the
// payment-intent reference and applies compensating total_price updates when
// refunds execute.
type Reservation struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        string          `gorm:"type:varchar(255);not null" json:"tenantId"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(12,2)" json:"totalPrice"`
	PaymentIntentID string          `gorm:"column:payment_intent_id;type:varchar(255);index:idx_reservations_intent" json:"paymentIntentId,omitempty"`
	CustomerEmail   string          `gorm:"type:varchar(255)" json:"customerEmail,omitempty"`
}

// TableName specifies the table name for Reservation
func (Reservation) TableName() string {
	return "reservations"
}

// WebhookEvent records a verified gateway event, keyed by the gateway's own
// event id for replay dedupe.
type WebhookEvent struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventID         string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_events_event" json:"eventId"`
	EventType       string     `gorm:"type:varchar(100);not null;index:idx_webhook_events_type" json:"eventType"`
	PaymentIntentID string     `gorm:"column:payment_intent_id;type:varchar(255)" json:"paymentIntentId,omitempty"`
	Payload         JSONB      `gorm:"type:jsonb" json:"payload,omitempty"`
	Processed       bool       `gorm:"default:false" json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}

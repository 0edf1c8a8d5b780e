// Package model holds the GORM row types. The schema enforces the ledger's
// structural guarantees: transactions carry a unique idempotency key, a
// milestone's release key can exist at most once, and a release transaction
// backs at most one payout. Application code checks these too, but the
// database is the backstop that survives races.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project represents a project record in the database.
type Project struct {
	gorm.Model
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	OwnerID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ContractorID *uuid.UUID `gorm:"type:uuid"`
	Title        string     `gorm:"size:255;not null"`
	Currency     string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Status       string     `gorm:"type:varchar(16);not null;default:'setup';index"`
}

// EscrowAccount represents an escrow account record in the database.
type EscrowAccount struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Status    string    `gorm:"type:varchar(16);not null;default:'active'"`

	Transactions []Transaction
}

// Transaction represents one append-only ledger row. Rows are never
// updated or deleted.
//
// ReleaseKey is "<account_id>:<milestone_id>" for release rows and NULL
// otherwise; its unique index makes a second concurrent release of the same
// milestone a constraint violation rather than a double spend.
type Transaction struct {
	gorm.Model
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	AccountID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type           string     `gorm:"type:varchar(20);not null"`
	Amount         int64      `gorm:"not null"`
	Currency       string     `gorm:"type:varchar(3);not null;default:'USD'"`
	MilestoneID    *uuid.UUID `gorm:"type:uuid"`
	Reason         string     `gorm:"size:512"`
	IdempotencyKey string     `gorm:"size:128;not null;uniqueIndex"`
	ReleaseKey     *string    `gorm:"size:128;uniqueIndex"`
}

// Milestone represents a milestone record in the database.
type Milestone struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"size:255;not null"`
	Amount    int64     `gorm:"not null"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'USD'"`
	DueDate   time.Time
	Status    string `gorm:"type:varchar(20);not null;default:'pending';index"`
}

// Dispute represents a dispute record in the database.
type Dispute struct {
	gorm.Model
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index"`
	RaisedBy   uuid.UUID `gorm:"type:uuid;not null"`
	Reason     string    `gorm:"size:512"`
	Status     string    `gorm:"type:varchar(16);not null;default:'open';index"`
	ResolvedAt *time.Time
}

// Payout represents a payout record in the database. The unique index on
// ReleaseTransactionID guarantees one payout per release.
type Payout struct {
	gorm.Model
	ID                   uuid.UUID  `gorm:"type:uuid;primary_key"`
	ContractorID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	ReleaseTransactionID *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Amount               int64      `gorm:"not null"`
	Currency             string     `gorm:"type:varchar(3);not null;default:'USD'"`
	BankAccount          string     `gorm:"size:128"`
	ProviderRef          string     `gorm:"size:128"`
	Status               string     `gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts             int        `gorm:"not null;default:0"`
	LastError            string     `gorm:"size:512"`
	ScheduledDate        time.Time
	ProcessedAt          *time.Time
}

// AuditRecord represents one recorded state transition.
type AuditRecord struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	ProjectID uuid.UUID `gorm:"type:uuid;index"`
	Entity    string    `gorm:"type:varchar(32);not null"`
	EntityID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor     uuid.UUID `gorm:"type:uuid"`
	FromState string    `gorm:"type:varchar(32)"`
	ToState   string    `gorm:"type:varchar(32);not null"`
	Note      string    `gorm:"size:512"`
	At        time.Time `gorm:"not null"`
}

// AutoMigrate creates or updates the schema for every ledger table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&EscrowAccount{},
		&Transaction{},
		&Milestone{},
		&Dispute{},
		&Payout{},
		&AuditRecord{},
	)
}

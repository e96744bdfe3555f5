// Package portal defines the typed records of the HPC portal and the store
// contract the export/import engine reads from and writes to. The engine
// consumes this package purely as a queryable source and sink of typed
// rows; billing math, approval workflows and permissions live in the portal
// itself and are out of scope here.
package portal

import (
	"math/big"
	"time"
)

// User is a portal account. Password hashes and API tokens are portal-side
// only and are never part of this contract.
type User struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	IsActive  bool
}

// Project is a portal project (allocation owner).
type Project struct {
	ID          int64
	Title       string
	PIUsername  string
	Description string
	Status      string
}

// ProjectUser is a project membership.
type ProjectUser struct {
	ID           int64
	ProjectTitle string
	Username     string
	Role         string
	Status       string
}

// Resource is a portal resource a rental node is attached to.
type Resource struct {
	ID           int64
	Name         string
	ResourceType string
	Description  string
	IsAvailable  bool
}

// NodeType is a rentable hardware class.
type NodeType struct {
	ID          int64
	Name        string
	CPUCores    int
	GPUCount    int
	MemoryGB    int
	Description string
}

// Node is a rentable machine.
type Node struct {
	ID            int64
	Hostname      string
	NodeTypeName  string
	ResourceName  string
	RackLocation  string
	IsSchedulable bool
}

// NodeRate is the hourly price of a node type from an effective date on.
type NodeRate struct {
	ID            int64
	NodeTypeName  string
	EffectiveDate time.Time
	HourlyRate    *big.Rat
	Currency      string
}

// Reservation is a node rental by a project over a date range.
type Reservation struct {
	ID           int64
	ProjectTitle string
	NodeHostname string
	RequestedBy  string
	StartDate    time.Time
	EndDate      time.Time
	Status       string
}

// CostAllocation splits a reservation's cost across billing accounts. It
// has no natural key of its own; it is identified by its owning reservation
// plus the account string.
type CostAllocation struct {
	ID            int64
	ReservationID int64
	Account       string
	Percent       *big.Rat
	Status        string
	ApprovedBy    string
}

// Invoice is a monthly rental invoice for a project.
type Invoice struct {
	ID            int64
	InvoiceNumber string
	ProjectTitle  string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Amount        *big.Rat
	Currency      string
	Status        string
}

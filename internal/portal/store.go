package portal

import (
	"context"
)

// Store is the contract between the portal's data and the export/import
// engine. List methods must return rows in a deterministic order (their
// natural key) so exports are reproducible; Get methods are option-style,
// returning ok=false for absent rows and reserving errors for real
// failures. Create methods assign the surrogate id on the passed struct.
type Store interface {
	UserStore
	ProjectStore
	ResourceStore
	NodeStore
	RentalStore
}

// UserStore reads and writes portal accounts.
type UserStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, bool, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
}

// ProjectStore reads and writes projects and memberships.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProjectByTitle(ctx context.Context, title string) (*Project, bool, error)
	CreateProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error

	ListProjectUsers(ctx context.Context) ([]ProjectUser, error)
	GetProjectUser(ctx context.Context, projectTitle, username string) (*ProjectUser, bool, error)
	CreateProjectUser(ctx context.Context, pu *ProjectUser) error
	UpdateProjectUser(ctx context.Context, pu *ProjectUser) error
}

// ResourceStore reads and writes portal resources.
type ResourceStore interface {
	ListResources(ctx context.Context) ([]Resource, error)
	GetResourceByName(ctx context.Context, name string) (*Resource, bool, error)
	CreateResource(ctx context.Context, r *Resource) error
	UpdateResource(ctx context.Context, r *Resource) error
}

// NodeStore reads and writes rental hardware records.
type NodeStore interface {
	ListNodeTypes(ctx context.Context) ([]NodeType, error)
	GetNodeTypeByName(ctx context.Context, name string) (*NodeType, bool, error)
	CreateNodeType(ctx context.Context, nt *NodeType) error
	UpdateNodeType(ctx context.Context, nt *NodeType) error

	ListNodes(ctx context.Context) ([]Node, error)
	GetNodeByHostname(ctx context.Context, hostname string) (*Node, bool, error)
	CreateNode(ctx context.Context, n *Node) error
	UpdateNode(ctx context.Context, n *Node) error

	ListNodeRates(ctx context.Context) ([]NodeRate, error)
	GetNodeRate(ctx context.Context, nodeTypeName string, effectiveDate string) (*NodeRate, bool, error)
	CreateNodeRate(ctx context.Context, nr *NodeRate) error
	UpdateNodeRate(ctx context.Context, nr *NodeRate) error
}

// RentalStore reads and writes reservations, cost allocations and invoices.
type RentalStore interface {
	ListReservations(ctx context.Context) ([]Reservation, error)
	GetReservation(ctx context.Context, projectTitle, nodeHostname, startDate string) (*Reservation, bool, error)
	CreateReservation(ctx context.Context, r *Reservation) error
	UpdateReservation(ctx context.Context, r *Reservation) error

	ListCostAllocations(ctx context.Context) ([]CostAllocation, error)
	GetCostAllocation(ctx context.Context, reservationID int64, account string) (*CostAllocation, bool, error)
	CreateCostAllocation(ctx context.Context, ca *CostAllocation) error
	UpdateCostAllocation(ctx context.Context, ca *CostAllocation) error

	ListInvoices(ctx context.Context) ([]Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, bool, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
}

// TransactionalStore is implemented by stores that can wrap a whole
// component import in a transaction. The engine itself is fail-soft per
// record; callers needing all-or-nothing semantics for a component wrap the
// import loop through InTransaction and return an error to roll back.
type TransactionalStore interface {
	Store
	InTransaction(ctx context.Context, fn func(Store) error) error
}

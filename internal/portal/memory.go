package portal

import (
	"context"
	"fmt"
	"sort"
)

// MemoryStore is an in-process Store used by tests and dry-run tooling. It
// is not safe for concurrent use; the engine is single-threaded per run.
type MemoryStore struct {
	nextID int64

	users           []User
	projects        []Project
	projectUsers    []ProjectUser
	resources       []Resource
	nodeTypes       []NodeType
	nodes           []Node
	nodeRates       []NodeRate
	reservations    []Reservation
	costAllocations []CostAllocation
	invoices        []Invoice
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) allocateID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// snapshot returns a deep copy used for transaction rollback.
func (s *MemoryStore) snapshot() *MemoryStore {
	cp := &MemoryStore{nextID: s.nextID}
	cp.users = append(cp.users, s.users...)
	cp.projects = append(cp.projects, s.projects...)
	cp.projectUsers = append(cp.projectUsers, s.projectUsers...)
	cp.resources = append(cp.resources, s.resources...)
	cp.nodeTypes = append(cp.nodeTypes, s.nodeTypes...)
	cp.nodes = append(cp.nodes, s.nodes...)
	cp.nodeRates = append(cp.nodeRates, s.nodeRates...)
	cp.reservations = append(cp.reservations, s.reservations...)
	cp.costAllocations = append(cp.costAllocations, s.costAllocations...)
	cp.invoices = append(cp.invoices, s.invoices...)
	return cp
}

// InTransaction runs fn against the store, restoring the pre-transaction
// state if fn returns an error.
func (s *MemoryStore) InTransaction(ctx context.Context, fn func(Store) error) error {
	saved := s.snapshot()
	if err := fn(s); err != nil {
		*s = *saved
		return err
	}
	return nil
}

// Users

func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	out := append([]User(nil), s.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	for i := range s.users {
		if s.users[i].Username == username {
			u := s.users[i]
			return &u, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	if _, ok, _ := s.GetUserByUsername(ctx, u.Username); ok {
		return fmt.Errorf("user %q already exists", u.Username)
	}
	u.ID = s.allocateID()
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, u *User) error {
	for i := range s.users {
		if s.users[i].Username == u.Username {
			u.ID = s.users[i].ID
			s.users[i] = *u
			return nil
		}
	}
	return fmt.Errorf("user %q not found", u.Username)
}

// Projects

func (s *MemoryStore) ListProjects(ctx context.Context) ([]Project, error) {
	out := append([]Project(nil), s.projects...)
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *MemoryStore) GetProjectByTitle(ctx context.Context, title string) (*Project, bool, error) {
	for i := range s.projects {
		if s.projects[i].Title == title {
			p := s.projects[i]
			return &p, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, p *Project) error {
	if _, ok, _ := s.GetProjectByTitle(ctx, p.Title); ok {
		return fmt.Errorf("project %q already exists", p.Title)
	}
	p.ID = s.allocateID()
	s.projects = append(s.projects, *p)
	return nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, p *Project) error {
	for i := range s.projects {
		if s.projects[i].Title == p.Title {
			p.ID = s.projects[i].ID
			s.projects[i] = *p
			return nil
		}
	}
	return fmt.Errorf("project %q not found", p.Title)
}

// Project memberships

func (s *MemoryStore) ListProjectUsers(ctx context.Context) ([]ProjectUser, error) {
	out := append([]ProjectUser(nil), s.projectUsers...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectTitle != out[j].ProjectTitle {
			return out[i].ProjectTitle < out[j].ProjectTitle
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *MemoryStore) GetProjectUser(ctx context.Context, projectTitle, username string) (*ProjectUser, bool, error) {
	for i := range s.projectUsers {
		if s.projectUsers[i].ProjectTitle == projectTitle && s.projectUsers[i].Username == username {
			pu := s.projectUsers[i]
			return &pu, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateProjectUser(ctx context.Context, pu *ProjectUser) error {
	if _, ok, _ := s.GetProjectUser(ctx, pu.ProjectTitle, pu.Username); ok {
		return fmt.Errorf("membership %q/%q already exists", pu.ProjectTitle, pu.Username)
	}
	pu.ID = s.allocateID()
	s.projectUsers = append(s.projectUsers, *pu)
	return nil
}

func (s *MemoryStore) UpdateProjectUser(ctx context.Context, pu *ProjectUser) error {
	for i := range s.projectUsers {
		if s.projectUsers[i].ProjectTitle == pu.ProjectTitle && s.projectUsers[i].Username == pu.Username {
			pu.ID = s.projectUsers[i].ID
			s.projectUsers[i] = *pu
			return nil
		}
	}
	return fmt.Errorf("membership %q/%q not found", pu.ProjectTitle, pu.Username)
}

// Resources

func (s *MemoryStore) ListResources(ctx context.Context) ([]Resource, error) {
	out := append([]Resource(nil), s.resources...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetResourceByName(ctx context.Context, name string) (*Resource, bool, error) {
	for i := range s.resources {
		if s.resources[i].Name == name {
			r := s.resources[i]
			return &r, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateResource(ctx context.Context, r *Resource) error {
	if _, ok, _ := s.GetResourceByName(ctx, r.Name); ok {
		return fmt.Errorf("resource %q already exists", r.Name)
	}
	r.ID = s.allocateID()
	s.resources = append(s.resources, *r)
	return nil
}

func (s *MemoryStore) UpdateResource(ctx context.Context, r *Resource) error {
	for i := range s.resources {
		if s.resources[i].Name == r.Name {
			r.ID = s.resources[i].ID
			s.resources[i] = *r
			return nil
		}
	}
	return fmt.Errorf("resource %q not found", r.Name)
}

// Node types

func (s *MemoryStore) ListNodeTypes(ctx context.Context) ([]NodeType, error) {
	out := append([]NodeType(nil), s.nodeTypes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetNodeTypeByName(ctx context.Context, name string) (*NodeType, bool, error) {
	for i := range s.nodeTypes {
		if s.nodeTypes[i].Name == name {
			nt := s.nodeTypes[i]
			return &nt, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateNodeType(ctx context.Context, nt *NodeType) error {
	if _, ok, _ := s.GetNodeTypeByName(ctx, nt.Name); ok {
		return fmt.Errorf("node type %q already exists", nt.Name)
	}
	nt.ID = s.allocateID()
	s.nodeTypes = append(s.nodeTypes, *nt)
	return nil
}

func (s *MemoryStore) UpdateNodeType(ctx context.Context, nt *NodeType) error {
	for i := range s.nodeTypes {
		if s.nodeTypes[i].Name == nt.Name {
			nt.ID = s.nodeTypes[i].ID
			s.nodeTypes[i] = *nt
			return nil
		}
	}
	return fmt.Errorf("node type %q not found", nt.Name)
}

// Nodes

func (s *MemoryStore) ListNodes(ctx context.Context) ([]Node, error) {
	out := append([]Node(nil), s.nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}

func (s *MemoryStore) GetNodeByHostname(ctx context.Context, hostname string) (*Node, bool, error) {
	for i := range s.nodes {
		if s.nodes[i].Hostname == hostname {
			n := s.nodes[i]
			return &n, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateNode(ctx context.Context, n *Node) error {
	if _, ok, _ := s.GetNodeByHostname(ctx, n.Hostname); ok {
		return fmt.Errorf("node %q already exists", n.Hostname)
	}
	n.ID = s.allocateID()
	s.nodes = append(s.nodes, *n)
	return nil
}

func (s *MemoryStore) UpdateNode(ctx context.Context, n *Node) error {
	for i := range s.nodes {
		if s.nodes[i].Hostname == n.Hostname {
			n.ID = s.nodes[i].ID
			s.nodes[i] = *n
			return nil
		}
	}
	return fmt.Errorf("node %q not found", n.Hostname)
}

// Node rates

func (s *MemoryStore) ListNodeRates(ctx context.Context) ([]NodeRate, error) {
	out := append([]NodeRate(nil), s.nodeRates...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeTypeName != out[j].NodeTypeName {
			return out[i].NodeTypeName < out[j].NodeTypeName
		}
		return out[i].EffectiveDate.Before(out[j].EffectiveDate)
	})
	return out, nil
}

func (s *MemoryStore) GetNodeRate(ctx context.Context, nodeTypeName, effectiveDate string) (*NodeRate, bool, error) {
	for i := range s.nodeRates {
		if s.nodeRates[i].NodeTypeName == nodeTypeName &&
			s.nodeRates[i].EffectiveDate.Format("2006-01-02") == effectiveDate {
			nr := s.nodeRates[i]
			return &nr, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateNodeRate(ctx context.Context, nr *NodeRate) error {
	if _, ok, _ := s.GetNodeRate(ctx, nr.NodeTypeName, nr.EffectiveDate.Format("2006-01-02")); ok {
		return fmt.Errorf("rate for %q at %s already exists", nr.NodeTypeName, nr.EffectiveDate.Format("2006-01-02"))
	}
	nr.ID = s.allocateID()
	s.nodeRates = append(s.nodeRates, *nr)
	return nil
}

func (s *MemoryStore) UpdateNodeRate(ctx context.Context, nr *NodeRate) error {
	for i := range s.nodeRates {
		if s.nodeRates[i].NodeTypeName == nr.NodeTypeName && s.nodeRates[i].EffectiveDate.Equal(nr.EffectiveDate) {
			nr.ID = s.nodeRates[i].ID
			s.nodeRates[i] = *nr
			return nil
		}
	}
	return fmt.Errorf("rate for %q not found", nr.NodeTypeName)
}

// Reservations

func (s *MemoryStore) ListReservations(ctx context.Context) ([]Reservation, error) {
	out := append([]Reservation(nil), s.reservations...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectTitle != out[j].ProjectTitle {
			return out[i].ProjectTitle < out[j].ProjectTitle
		}
		if out[i].NodeHostname != out[j].NodeHostname {
			return out[i].NodeHostname < out[j].NodeHostname
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, projectTitle, nodeHostname, startDate string) (*Reservation, bool, error) {
	for i := range s.reservations {
		r := s.reservations[i]
		if r.ProjectTitle == projectTitle && r.NodeHostname == nodeHostname &&
			r.StartDate.Format("2006-01-02") == startDate {
			return &r, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateReservation(ctx context.Context, r *Reservation) error {
	if _, ok, _ := s.GetReservation(ctx, r.ProjectTitle, r.NodeHostname, r.StartDate.Format("2006-01-02")); ok {
		return fmt.Errorf("reservation %q/%q/%s already exists", r.ProjectTitle, r.NodeHostname, r.StartDate.Format("2006-01-02"))
	}
	r.ID = s.allocateID()
	s.reservations = append(s.reservations, *r)
	return nil
}

func (s *MemoryStore) UpdateReservation(ctx context.Context, r *Reservation) error {
	for i := range s.reservations {
		existing := s.reservations[i]
		if existing.ProjectTitle == r.ProjectTitle && existing.NodeHostname == r.NodeHostname &&
			existing.StartDate.Equal(r.StartDate) {
			r.ID = existing.ID
			s.reservations[i] = *r
			return nil
		}
	}
	return fmt.Errorf("reservation %q/%q not found", r.ProjectTitle, r.NodeHostname)
}

// Cost allocations

func (s *MemoryStore) ListCostAllocations(ctx context.Context) ([]CostAllocation, error) {
	out := append([]CostAllocation(nil), s.costAllocations...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationID != out[j].ReservationID {
			return out[i].ReservationID < out[j].ReservationID
		}
		return out[i].Account < out[j].Account
	})
	return out, nil
}

func (s *MemoryStore) GetCostAllocation(ctx context.Context, reservationID int64, account string) (*CostAllocation, bool, error) {
	for i := range s.costAllocations {
		if s.costAllocations[i].ReservationID == reservationID && s.costAllocations[i].Account == account {
			ca := s.costAllocations[i]
			return &ca, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateCostAllocation(ctx context.Context, ca *CostAllocation) error {
	if _, ok, _ := s.GetCostAllocation(ctx, ca.ReservationID, ca.Account); ok {
		return fmt.Errorf("cost allocation for reservation %d account %q already exists", ca.ReservationID, ca.Account)
	}
	ca.ID = s.allocateID()
	s.costAllocations = append(s.costAllocations, *ca)
	return nil
}

func (s *MemoryStore) UpdateCostAllocation(ctx context.Context, ca *CostAllocation) error {
	for i := range s.costAllocations {
		if s.costAllocations[i].ReservationID == ca.ReservationID && s.costAllocations[i].Account == ca.Account {
			ca.ID = s.costAllocations[i].ID
			s.costAllocations[i] = *ca
			return nil
		}
	}
	return fmt.Errorf("cost allocation for reservation %d account %q not found", ca.ReservationID, ca.Account)
}

// Invoices

func (s *MemoryStore) ListInvoices(ctx context.Context) ([]Invoice, error) {
	out := append([]Invoice(nil), s.invoices...)
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

func (s *MemoryStore) GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, bool, error) {
	for i := range s.invoices {
		if s.invoices[i].InvoiceNumber == number {
			inv := s.invoices[i]
			return &inv, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if _, ok, _ := s.GetInvoiceByNumber(ctx, inv.InvoiceNumber); ok {
		return fmt.Errorf("invoice %q already exists", inv.InvoiceNumber)
	}
	inv.ID = s.allocateID()
	s.invoices = append(s.invoices, *inv)
	return nil
}

func (s *MemoryStore) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	for i := range s.invoices {
		if s.invoices[i].InvoiceNumber == inv.InvoiceNumber {
			inv.ID = s.invoices[i].ID
			s.invoices[i] = *inv
			return nil
		}
	}
	return fmt.Errorf("invoice %q not found", inv.InvoiceNumber)
}

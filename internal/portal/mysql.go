package portal

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// DatabaseConfig holds the portal database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// DSN builds the MySQL connection string. parseTime is required so DATE
// and DATETIME columns scan into time.Time.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// dbtx is the query surface shared by *sql.DB and *sql.Tx, letting the
// same store methods run inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// MySQLStore is the Store implementation over the portal's MySQL database.
type MySQLStore struct {
	db *sql.DB // nil for the transaction-scoped view
	q  dbtx
}

// OpenMySQLStore connects to the portal database and verifies the
// connection.
func OpenMySQLStore(ctx context.Context, config DatabaseConfig) (*MySQLStore, error) {
	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open portal database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach portal database: %w", err)
	}
	return &MySQLStore{db: db, q: db}, nil
}

// NewMySQLStore wraps an existing database handle. Used by tests.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, q: db}
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InTransaction runs fn against a transaction-scoped view of the store,
// committing when fn returns nil and rolling back otherwise.
func (s *MySQLStore) InTransaction(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fmt.Errorf("nested transactions are not supported")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&MySQLStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// scanDecimal converts a DECIMAL column value into an exact rational.
func scanDecimal(raw sql.NullString) (*big.Rat, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	r, ok := new(big.Rat).SetString(raw.String)
	if !ok {
		return nil, fmt.Errorf("invalid decimal column value %q", raw.String)
	}
	return r, nil
}

// decimalArg renders a rational for a DECIMAL column parameter.
func decimalArg(r *big.Rat) interface{} {
	if r == nil {
		return nil
	}
	return r.FloatString(4)
}

// Users

func (s *MySQLStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, username, email, first_name, last_name, is_active FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	var u User
	err := s.q.QueryRowContext(ctx,
		`SELECT id, username, email, first_name, last_name, is_active FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	return &u, true, nil
}

func (s *MySQLStore) CreateUser(ctx context.Context, u *User) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (username, email, first_name, last_name, is_active) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.FirstName, u.LastName, u.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", u.Username, err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateUser(ctx context.Context, u *User) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, is_active = ? WHERE username = ?`,
		u.Email, u.FirstName, u.LastName, u.IsActive, u.Username)
	if err != nil {
		return fmt.Errorf("failed to update user %q: %w", u.Username, err)
	}
	return nil
}

// Projects

func (s *MySQLStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, title, pi_username, description, status FROM projects ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title, &p.PIUsername, &p.Description, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetProjectByTitle(ctx context.Context, title string) (*Project, bool, error) {
	var p Project
	err := s.q.QueryRowContext(ctx,
		`SELECT id, title, pi_username, description, status FROM projects WHERE title = ?`,
		title).Scan(&p.ID, &p.Title, &p.PIUsername, &p.Description, &p.Status)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up project %q: %w", title, err)
	}
	return &p, true, nil
}

func (s *MySQLStore) CreateProject(ctx context.Context, p *Project) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO projects (title, pi_username, description, status) VALUES (?, ?, ?, ?)`,
		p.Title, p.PIUsername, p.Description, p.Status)
	if err != nil {
		return fmt.Errorf("failed to create project %q: %w", p.Title, err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateProject(ctx context.Context, p *Project) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE projects SET pi_username = ?, description = ?, status = ? WHERE title = ?`,
		p.PIUsername, p.Description, p.Status, p.Title)
	if err != nil {
		return fmt.Errorf("failed to update project %q: %w", p.Title, err)
	}
	return nil
}

// Project memberships

func (s *MySQLStore) ListProjectUsers(ctx context.Context) ([]ProjectUser, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, project_title, username, role, status FROM project_users ORDER BY project_title, username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list project memberships: %w", err)
	}
	defer rows.Close()

	var out []ProjectUser
	for rows.Next() {
		var pu ProjectUser
		if err := rows.Scan(&pu.ID, &pu.ProjectTitle, &pu.Username, &pu.Role, &pu.Status); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		out = append(out, pu)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetProjectUser(ctx context.Context, projectTitle, username string) (*ProjectUser, bool, error) {
	var pu ProjectUser
	err := s.q.QueryRowContext(ctx,
		`SELECT id, project_title, username, role, status FROM project_users WHERE project_title = ? AND username = ?`,
		projectTitle, username).Scan(&pu.ID, &pu.ProjectTitle, &pu.Username, &pu.Role, &pu.Status)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up membership %q/%q: %w", projectTitle, username, err)
	}
	return &pu, true, nil
}

func (s *MySQLStore) CreateProjectUser(ctx context.Context, pu *ProjectUser) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO project_users (project_title, username, role, status) VALUES (?, ?, ?, ?)`,
		pu.ProjectTitle, pu.Username, pu.Role, pu.Status)
	if err != nil {
		return fmt.Errorf("failed to create membership %q/%q: %w", pu.ProjectTitle, pu.Username, err)
	}
	pu.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateProjectUser(ctx context.Context, pu *ProjectUser) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE project_users SET role = ?, status = ? WHERE project_title = ? AND username = ?`,
		pu.Role, pu.Status, pu.ProjectTitle, pu.Username)
	if err != nil {
		return fmt.Errorf("failed to update membership %q/%q: %w", pu.ProjectTitle, pu.Username, err)
	}
	return nil
}

// Resources

func (s *MySQLStore) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, resource_type, description, is_available FROM resources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.ResourceType, &r.Description, &r.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetResourceByName(ctx context.Context, name string) (*Resource, bool, error) {
	var r Resource
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, resource_type, description, is_available FROM resources WHERE name = ?`,
		name).Scan(&r.ID, &r.Name, &r.ResourceType, &r.Description, &r.IsAvailable)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up resource %q: %w", name, err)
	}
	return &r, true, nil
}

func (s *MySQLStore) CreateResource(ctx context.Context, r *Resource) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO resources (name, resource_type, description, is_available) VALUES (?, ?, ?, ?)`,
		r.Name, r.ResourceType, r.Description, r.IsAvailable)
	if err != nil {
		return fmt.Errorf("failed to create resource %q: %w", r.Name, err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateResource(ctx context.Context, r *Resource) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE resources SET resource_type = ?, description = ?, is_available = ? WHERE name = ?`,
		r.ResourceType, r.Description, r.IsAvailable, r.Name)
	if err != nil {
		return fmt.Errorf("failed to update resource %q: %w", r.Name, err)
	}
	return nil
}

// Node types

func (s *MySQLStore) ListNodeTypes(ctx context.Context) ([]NodeType, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, cpu_cores, gpu_count, memory_gb, description FROM rental_node_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list node types: %w", err)
	}
	defer rows.Close()

	var out []NodeType
	for rows.Next() {
		var nt NodeType
		if err := rows.Scan(&nt.ID, &nt.Name, &nt.CPUCores, &nt.GPUCount, &nt.MemoryGB, &nt.Description); err != nil {
			return nil, fmt.Errorf("failed to scan node type row: %w", err)
		}
		out = append(out, nt)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetNodeTypeByName(ctx context.Context, name string) (*NodeType, bool, error) {
	var nt NodeType
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, cpu_cores, gpu_count, memory_gb, description FROM rental_node_types WHERE name = ?`,
		name).Scan(&nt.ID, &nt.Name, &nt.CPUCores, &nt.GPUCount, &nt.MemoryGB, &nt.Description)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up node type %q: %w", name, err)
	}
	return &nt, true, nil
}

func (s *MySQLStore) CreateNodeType(ctx context.Context, nt *NodeType) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_node_types (name, cpu_cores, gpu_count, memory_gb, description) VALUES (?, ?, ?, ?, ?)`,
		nt.Name, nt.CPUCores, nt.GPUCount, nt.MemoryGB, nt.Description)
	if err != nil {
		return fmt.Errorf("failed to create node type %q: %w", nt.Name, err)
	}
	nt.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateNodeType(ctx context.Context, nt *NodeType) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_node_types SET cpu_cores = ?, gpu_count = ?, memory_gb = ?, description = ? WHERE name = ?`,
		nt.CPUCores, nt.GPUCount, nt.MemoryGB, nt.Description, nt.Name)
	if err != nil {
		return fmt.Errorf("failed to update node type %q: %w", nt.Name, err)
	}
	return nil
}

// Nodes

func (s *MySQLStore) ListNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, hostname, node_type_name, resource_name, rack_location, is_schedulable FROM rental_nodes ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Hostname, &n.NodeTypeName, &n.ResourceName, &n.RackLocation, &n.IsSchedulable); err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetNodeByHostname(ctx context.Context, hostname string) (*Node, bool, error) {
	var n Node
	err := s.q.QueryRowContext(ctx,
		`SELECT id, hostname, node_type_name, resource_name, rack_location, is_schedulable FROM rental_nodes WHERE hostname = ?`,
		hostname).Scan(&n.ID, &n.Hostname, &n.NodeTypeName, &n.ResourceName, &n.RackLocation, &n.IsSchedulable)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up node %q: %w", hostname, err)
	}
	return &n, true, nil
}

func (s *MySQLStore) CreateNode(ctx context.Context, n *Node) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_nodes (hostname, node_type_name, resource_name, rack_location, is_schedulable) VALUES (?, ?, ?, ?, ?)`,
		n.Hostname, n.NodeTypeName, n.ResourceName, n.RackLocation, n.IsSchedulable)
	if err != nil {
		return fmt.Errorf("failed to create node %q: %w", n.Hostname, err)
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateNode(ctx context.Context, n *Node) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_nodes SET node_type_name = ?, resource_name = ?, rack_location = ?, is_schedulable = ? WHERE hostname = ?`,
		n.NodeTypeName, n.ResourceName, n.RackLocation, n.IsSchedulable, n.Hostname)
	if err != nil {
		return fmt.Errorf("failed to update node %q: %w", n.Hostname, err)
	}
	return nil
}

// Node rates

func (s *MySQLStore) ListNodeRates(ctx context.Context) ([]NodeRate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, node_type_name, effective_date, hourly_rate, currency FROM rental_node_rates ORDER BY node_type_name, effective_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list node rates: %w", err)
	}
	defer rows.Close()

	var out []NodeRate
	for rows.Next() {
		var nr NodeRate
		var rate sql.NullString
		if err := rows.Scan(&nr.ID, &nr.NodeTypeName, &nr.EffectiveDate, &rate, &nr.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan node rate row: %w", err)
		}
		r, err := scanDecimal(rate)
		if err != nil {
			return nil, err
		}
		nr.HourlyRate = r
		out = append(out, nr)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetNodeRate(ctx context.Context, nodeTypeName, effectiveDate string) (*NodeRate, bool, error) {
	var nr NodeRate
	var rate sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT id, node_type_name, effective_date, hourly_rate, currency FROM rental_node_rates WHERE node_type_name = ? AND effective_date = ?`,
		nodeTypeName, effectiveDate).Scan(&nr.ID, &nr.NodeTypeName, &nr.EffectiveDate, &rate, &nr.Currency)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up node rate %q/%s: %w", nodeTypeName, effectiveDate, err)
	}
	r, err := scanDecimal(rate)
	if err != nil {
		return nil, false, err
	}
	nr.HourlyRate = r
	return &nr, true, nil
}

func (s *MySQLStore) CreateNodeRate(ctx context.Context, nr *NodeRate) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_node_rates (node_type_name, effective_date, hourly_rate, currency) VALUES (?, ?, ?, ?)`,
		nr.NodeTypeName, nr.EffectiveDate, decimalArg(nr.HourlyRate), nr.Currency)
	if err != nil {
		return fmt.Errorf("failed to create node rate %q: %w", nr.NodeTypeName, err)
	}
	nr.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateNodeRate(ctx context.Context, nr *NodeRate) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_node_rates SET hourly_rate = ?, currency = ? WHERE node_type_name = ? AND effective_date = ?`,
		decimalArg(nr.HourlyRate), nr.Currency, nr.NodeTypeName, nr.EffectiveDate)
	if err != nil {
		return fmt.Errorf("failed to update node rate %q: %w", nr.NodeTypeName, err)
	}
	return nil
}

// Reservations

func (s *MySQLStore) ListReservations(ctx context.Context) ([]Reservation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, project_title, node_hostname, requested_by, start_date, end_date, status FROM rental_reservations ORDER BY project_title, node_hostname, start_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.ProjectTitle, &r.NodeHostname, &r.RequestedBy, &r.StartDate, &r.EndDate, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetReservation(ctx context.Context, projectTitle, nodeHostname, startDate string) (*Reservation, bool, error) {
	var r Reservation
	err := s.q.QueryRowContext(ctx,
		`SELECT id, project_title, node_hostname, requested_by, start_date, end_date, status FROM rental_reservations WHERE project_title = ? AND node_hostname = ? AND start_date = ?`,
		projectTitle, nodeHostname, startDate).Scan(&r.ID, &r.ProjectTitle, &r.NodeHostname, &r.RequestedBy, &r.StartDate, &r.EndDate, &r.Status)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up reservation %q/%q/%s: %w", projectTitle, nodeHostname, startDate, err)
	}
	return &r, true, nil
}

func (s *MySQLStore) CreateReservation(ctx context.Context, r *Reservation) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_reservations (project_title, node_hostname, requested_by, start_date, end_date, status) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ProjectTitle, r.NodeHostname, r.RequestedBy, r.StartDate, r.EndDate, r.Status)
	if err != nil {
		return fmt.Errorf("failed to create reservation %q/%q: %w", r.ProjectTitle, r.NodeHostname, err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateReservation(ctx context.Context, r *Reservation) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_reservations SET requested_by = ?, end_date = ?, status = ? WHERE project_title = ? AND node_hostname = ? AND start_date = ?`,
		r.RequestedBy, r.EndDate, r.Status, r.ProjectTitle, r.NodeHostname, r.StartDate)
	if err != nil {
		return fmt.Errorf("failed to update reservation %q/%q: %w", r.ProjectTitle, r.NodeHostname, err)
	}
	return nil
}

// Cost allocations

func (s *MySQLStore) ListCostAllocations(ctx context.Context) ([]CostAllocation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, reservation_id, account, percent, status, approved_by FROM rental_cost_allocations ORDER BY reservation_id, account`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost allocations: %w", err)
	}
	defer rows.Close()

	var out []CostAllocation
	for rows.Next() {
		var ca CostAllocation
		var percent sql.NullString
		if err := rows.Scan(&ca.ID, &ca.ReservationID, &ca.Account, &percent, &ca.Status, &ca.ApprovedBy); err != nil {
			return nil, fmt.Errorf("failed to scan cost allocation row: %w", err)
		}
		p, err := scanDecimal(percent)
		if err != nil {
			return nil, err
		}
		ca.Percent = p
		out = append(out, ca)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetCostAllocation(ctx context.Context, reservationID int64, account string) (*CostAllocation, bool, error) {
	var ca CostAllocation
	var percent sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT id, reservation_id, account, percent, status, approved_by FROM rental_cost_allocations WHERE reservation_id = ? AND account = ?`,
		reservationID, account).Scan(&ca.ID, &ca.ReservationID, &ca.Account, &percent, &ca.Status, &ca.ApprovedBy)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up cost allocation %d/%q: %w", reservationID, account, err)
	}
	p, err := scanDecimal(percent)
	if err != nil {
		return nil, false, err
	}
	ca.Percent = p
	return &ca, true, nil
}

func (s *MySQLStore) CreateCostAllocation(ctx context.Context, ca *CostAllocation) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_cost_allocations (reservation_id, account, percent, status, approved_by) VALUES (?, ?, ?, ?, ?)`,
		ca.ReservationID, ca.Account, decimalArg(ca.Percent), ca.Status, ca.ApprovedBy)
	if err != nil {
		return fmt.Errorf("failed to create cost allocation %d/%q: %w", ca.ReservationID, ca.Account, err)
	}
	ca.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateCostAllocation(ctx context.Context, ca *CostAllocation) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_cost_allocations SET percent = ?, status = ?, approved_by = ? WHERE reservation_id = ? AND account = ?`,
		decimalArg(ca.Percent), ca.Status, ca.ApprovedBy, ca.ReservationID, ca.Account)
	if err != nil {
		return fmt.Errorf("failed to update cost allocation %d/%q: %w", ca.ReservationID, ca.Account, err)
	}
	return nil
}

// Invoices

func (s *MySQLStore) ListInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, invoice_number, project_title, period_start, period_end, amount, currency, status FROM rental_invoices ORDER BY invoice_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		var amount sql.NullString
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ProjectTitle, &inv.PeriodStart, &inv.PeriodEnd, &amount, &inv.Currency, &inv.Status); err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		a, err := scanDecimal(amount)
		if err != nil {
			return nil, err
		}
		inv.Amount = a
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, bool, error) {
	var inv Invoice
	var amount sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT id, invoice_number, project_title, period_start, period_end, amount, currency, status FROM rental_invoices WHERE invoice_number = ?`,
		number).Scan(&inv.ID, &inv.InvoiceNumber, &inv.ProjectTitle, &inv.PeriodStart, &inv.PeriodEnd, &amount, &inv.Currency, &inv.Status)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up invoice %q: %w", number, err)
	}
	a, err := scanDecimal(amount)
	if err != nil {
		return nil, false, err
	}
	inv.Amount = a
	return &inv, true, nil
}

func (s *MySQLStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO rental_invoices (invoice_number, project_title, period_start, period_end, amount, currency, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceNumber, inv.ProjectTitle, inv.PeriodStart, inv.PeriodEnd, decimalArg(inv.Amount), inv.Currency, inv.Status)
	if err != nil {
		return fmt.Errorf("failed to create invoice %q: %w", inv.InvoiceNumber, err)
	}
	inv.ID, _ = res.LastInsertId()
	return nil
}

func (s *MySQLStore) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE rental_invoices SET project_title = ?, period_start = ?, period_end = ?, amount = ?, currency = ?, status = ? WHERE invoice_number = ?`,
		inv.ProjectTitle, inv.PeriodStart, inv.PeriodEnd, decimalArg(inv.Amount), inv.Currency, inv.Status, inv.InvoiceNumber)
	if err != nil {
		return fmt.Errorf("failed to update invoice %q: %w", inv.InvoiceNumber, err)
	}
	return nil
}

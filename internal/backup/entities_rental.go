package backup

import (
	"context"
	"fmt"

	"coldfront-rental-sync/internal/portal"
)

// Model names of the rental component.
const (
	ModelNodeTypes       = "node_types"
	ModelNodes           = "nodes"
	ModelNodeRates       = "node_rates"
	ModelReservations    = "reservations"
	ModelCostAllocations = "cost_allocations"
	ModelInvoices        = "invoices"
)

// NodeTypeSyncer exports and imports hardware classes, keyed by name.
type NodeTypeSyncer struct {
	store portal.NodeStore
}

func NewNodeTypeSyncer(store portal.NodeStore) *NodeTypeSyncer {
	return &NodeTypeSyncer{store: store}
}

func (s *NodeTypeSyncer) ModelName() string      { return ModelNodeTypes }
func (s *NodeTypeSyncer) Dependencies() []string { return nil }

func (s *NodeTypeSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelNodeTypes, dir, func(ctx context.Context) ([]Record, []string, error) {
		nodeTypes, err := s.store.ListNodeTypes(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(nodeTypes))
		for _, nt := range nodeTypes {
			records = append(records, Record{
				NaturalKey: NaturalKey{nt.Name},
				Fields: map[string]interface{}{
					"name":        nt.Name,
					"cpu_cores":   nt.CPUCores,
					"gpu_count":   nt.GPUCount,
					"memory_gb":   nt.MemoryGB,
					"description": nt.Description,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *NodeTypeSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelNodeTypes, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			name, err := stringField(rec.Fields, "name")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetNodeTypeByName(ctx, name)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			nt, err := nodeTypeFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateNodeType(ctx, nt)
		},
		update: func(ctx context.Context, rec Record) error {
			nt, err := nodeTypeFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateNodeType(ctx, nt)
		},
	})
}

func nodeTypeFromRecord(rec Record) (*portal.NodeType, error) {
	name, err := stringField(rec.Fields, "name")
	if err != nil {
		return nil, err
	}
	cpuCores, err := intField(rec.Fields, "cpu_cores")
	if err != nil {
		return nil, err
	}
	gpuCount, err := intField(rec.Fields, "gpu_count")
	if err != nil {
		return nil, err
	}
	memoryGB, err := intField(rec.Fields, "memory_gb")
	if err != nil {
		return nil, err
	}
	return &portal.NodeType{
		Name:        name,
		CPUCores:    int(cpuCores),
		GPUCount:    int(gpuCount),
		MemoryGB:    int(memoryGB),
		Description: optionalStringField(rec.Fields, "description"),
	}, nil
}

// NodeSyncer exports and imports rentable machines, keyed by hostname.
type NodeSyncer struct {
	store portal.NodeStore
}

func NewNodeSyncer(store portal.NodeStore) *NodeSyncer {
	return &NodeSyncer{store: store}
}

func (s *NodeSyncer) ModelName() string { return ModelNodes }
func (s *NodeSyncer) Dependencies() []string {
	return []string{ModelNodeTypes, ModelResources}
}

func (s *NodeSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelNodes, dir, func(ctx context.Context) ([]Record, []string, error) {
		nodes, err := s.store.ListNodes(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(nodes))
		for _, n := range nodes {
			records = append(records, Record{
				NaturalKey: NaturalKey{n.Hostname},
				Fields: map[string]interface{}{
					"hostname":       n.Hostname,
					"node_type":      n.NodeTypeName,
					"resource":       n.ResourceName,
					"rack_location":  n.RackLocation,
					"is_schedulable": n.IsSchedulable,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *NodeSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelNodes, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			hostname, err := stringField(rec.Fields, "hostname")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetNodeByHostname(ctx, hostname)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			n, err := nodeFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateNode(ctx, n)
		},
		update: func(ctx context.Context, rec Record) error {
			n, err := nodeFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateNode(ctx, n)
		},
	})
}

func nodeFromRecord(rec Record) (*portal.Node, error) {
	hostname, err := stringField(rec.Fields, "hostname")
	if err != nil {
		return nil, err
	}
	nodeType, err := stringField(rec.Fields, "node_type")
	if err != nil {
		return nil, err
	}
	return &portal.Node{
		Hostname:      hostname,
		NodeTypeName:  nodeType,
		ResourceName:  optionalStringField(rec.Fields, "resource"),
		RackLocation:  optionalStringField(rec.Fields, "rack_location"),
		IsSchedulable: boolField(rec.Fields, "is_schedulable"),
	}, nil
}

// NodeRateSyncer exports and imports hourly rates, keyed by
// (node type name, effective date).
type NodeRateSyncer struct {
	store portal.NodeStore
}

func NewNodeRateSyncer(store portal.NodeStore) *NodeRateSyncer {
	return &NodeRateSyncer{store: store}
}

func (s *NodeRateSyncer) ModelName() string      { return ModelNodeRates }
func (s *NodeRateSyncer) Dependencies() []string { return []string{ModelNodeTypes} }

func (s *NodeRateSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelNodeRates, dir, func(ctx context.Context) ([]Record, []string, error) {
		rates, err := s.store.ListNodeRates(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(rates))
		for _, nr := range rates {
			effective := FormatDate(nr.EffectiveDate)
			records = append(records, Record{
				NaturalKey: NaturalKey{nr.NodeTypeName, effective},
				Fields: map[string]interface{}{
					"node_type":      nr.NodeTypeName,
					"effective_date": effective,
					"hourly_rate":    FormatDecimal(nr.HourlyRate),
					"currency":       nr.Currency,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *NodeRateSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelNodeRates, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			nodeType, err := stringField(rec.Fields, "node_type")
			if err != nil {
				return false, err
			}
			effective, err := stringField(rec.Fields, "effective_date")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetNodeRate(ctx, nodeType, effective)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			nr, err := nodeRateFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateNodeRate(ctx, nr)
		},
		update: func(ctx context.Context, rec Record) error {
			nr, err := nodeRateFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateNodeRate(ctx, nr)
		},
	})
}

func nodeRateFromRecord(rec Record) (*portal.NodeRate, error) {
	nodeType, err := stringField(rec.Fields, "node_type")
	if err != nil {
		return nil, err
	}
	effective, err := dateField(rec.Fields, "effective_date")
	if err != nil {
		return nil, err
	}
	rate, err := decimalField(rec.Fields, "hourly_rate")
	if err != nil {
		return nil, err
	}
	return &portal.NodeRate{
		NodeTypeName:  nodeType,
		EffectiveDate: effective,
		HourlyRate:    rate,
		Currency:      optionalStringField(rec.Fields, "currency"),
	}, nil
}

// ReservationSyncer exports and imports reservations, keyed by
// (project title, node hostname, start date). Each exported record also
// carries the source store's surrogate id so that cost allocations, which
// have no natural key of their own, can reference their reservation across
// the export boundary. On import the syncer feeds the id translation table:
// found and created reservations map their exported id to the target store's
// id. Dry runs record a placeholder mapping for would-be creations so the
// downstream branching matches a real run exactly.
type ReservationSyncer struct {
	store portal.RentalStore
}

func NewReservationSyncer(store portal.RentalStore) *ReservationSyncer {
	return &ReservationSyncer{store: store}
}

func (s *ReservationSyncer) ModelName() string { return ModelReservations }
func (s *ReservationSyncer) Dependencies() []string {
	return []string{ModelProjects, ModelNodes, ModelUsers}
}

func (s *ReservationSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelReservations, dir, func(ctx context.Context) ([]Record, []string, error) {
		reservations, err := s.store.ListReservations(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(reservations))
		for _, r := range reservations {
			start := FormatDate(r.StartDate)
			records = append(records, Record{
				NaturalKey: NaturalKey{r.ProjectTitle, r.NodeHostname, start},
				Fields: map[string]interface{}{
					"id":            r.ID,
					"project_title": r.ProjectTitle,
					"node_hostname": r.NodeHostname,
					"requested_by":  r.RequestedBy,
					"start_date":    start,
					"end_date":      FormatDate(r.EndDate),
					"status":        r.Status,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *ReservationSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelReservations, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			r, oldPK, err := reservationFromRecord(rec)
			if err != nil {
				return false, err
			}
			existing, ok, err := s.store.GetReservation(ctx, r.ProjectTitle, r.NodeHostname, FormatDate(r.StartDate))
			if err != nil {
				return false, err
			}
			if ok {
				ictx.MapPK(ModelReservations, oldPK, existing.ID)
			} else if opts.DryRun && opts.Mode != ImportModeUpdateOnly {
				// The creation below will not run, so register a placeholder
				// mapping to keep downstream lookups on the same path as a
				// real run. Update-only never creates, so it gets no
				// placeholder and dependent lookups fail in both modes alike.
				ictx.MapPK(ModelReservations, oldPK, 0)
			}
			return ok, nil
		},
		create: func(ctx context.Context, rec Record) error {
			r, oldPK, err := reservationFromRecord(rec)
			if err != nil {
				return err
			}
			if err := s.store.CreateReservation(ctx, r); err != nil {
				return err
			}
			ictx.MapPK(ModelReservations, oldPK, r.ID)
			return nil
		},
		update: func(ctx context.Context, rec Record) error {
			r, _, err := reservationFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateReservation(ctx, r)
		},
	})
}

func reservationFromRecord(rec Record) (*portal.Reservation, int64, error) {
	oldPK, err := intField(rec.Fields, "id")
	if err != nil {
		return nil, 0, err
	}
	projectTitle, err := stringField(rec.Fields, "project_title")
	if err != nil {
		return nil, 0, err
	}
	nodeHostname, err := stringField(rec.Fields, "node_hostname")
	if err != nil {
		return nil, 0, err
	}
	start, err := dateField(rec.Fields, "start_date")
	if err != nil {
		return nil, 0, err
	}
	end, err := dateField(rec.Fields, "end_date")
	if err != nil {
		return nil, 0, err
	}
	return &portal.Reservation{
		ProjectTitle: projectTitle,
		NodeHostname: nodeHostname,
		RequestedBy:  optionalStringField(rec.Fields, "requested_by"),
		StartDate:    start,
		EndDate:      end,
		Status:       optionalStringField(rec.Fields, "status"),
	}, oldPK, nil
}

// CostAllocationSyncer exports and imports cost splits. A cost allocation
// is identified by its owning reservation plus the account string; the
// reservation side of the key is the exported surrogate id, resolved at
// import time through the id translation table populated by the reservation
// syncer.
type CostAllocationSyncer struct {
	store portal.RentalStore
}

func NewCostAllocationSyncer(store portal.RentalStore) *CostAllocationSyncer {
	return &CostAllocationSyncer{store: store}
}

func (s *CostAllocationSyncer) ModelName() string      { return ModelCostAllocations }
func (s *CostAllocationSyncer) Dependencies() []string { return []string{ModelReservations} }

func (s *CostAllocationSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelCostAllocations, dir, func(ctx context.Context) ([]Record, []string, error) {
		allocations, err := s.store.ListCostAllocations(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(allocations))
		for _, ca := range allocations {
			records = append(records, Record{
				NaturalKey: NaturalKey{ca.ReservationID, ca.Account},
				Fields: map[string]interface{}{
					"reservation_id": ca.ReservationID,
					"account":        ca.Account,
					"percent":        FormatDecimal(ca.Percent),
					"status":         ca.Status,
					"approved_by":    ca.ApprovedBy,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *CostAllocationSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	resolve := func(rec Record) (*portal.CostAllocation, error) {
		ca, oldReservationID, err := costAllocationFromRecord(rec)
		if err != nil {
			return nil, err
		}
		reservationID, ok := ictx.ResolvePK(ModelReservations, oldReservationID)
		if !ok {
			return nil, fmt.Errorf("reservation with exported id %d is not part of this import and was not found locally", oldReservationID)
		}
		ca.ReservationID = reservationID
		return ca, nil
	}

	return runImport(ctx, ModelCostAllocations, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			ca, err := resolve(rec)
			if err != nil {
				return false, err
			}
			if opts.DryRun && ca.ReservationID == 0 {
				// Placeholder mapping from a dry-run reservation creation; the
				// allocation would be created alongside it.
				return false, nil
			}
			_, ok, err := s.store.GetCostAllocation(ctx, ca.ReservationID, ca.Account)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			ca, err := resolve(rec)
			if err != nil {
				return err
			}
			return s.store.CreateCostAllocation(ctx, ca)
		},
		update: func(ctx context.Context, rec Record) error {
			ca, err := resolve(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateCostAllocation(ctx, ca)
		},
	})
}

func costAllocationFromRecord(rec Record) (*portal.CostAllocation, int64, error) {
	oldReservationID, err := intField(rec.Fields, "reservation_id")
	if err != nil {
		return nil, 0, err
	}
	account, err := stringField(rec.Fields, "account")
	if err != nil {
		return nil, 0, err
	}
	percent, err := decimalField(rec.Fields, "percent")
	if err != nil {
		return nil, 0, err
	}
	return &portal.CostAllocation{
		Account:    account,
		Percent:    percent,
		Status:     optionalStringField(rec.Fields, "status"),
		ApprovedBy: optionalStringField(rec.Fields, "approved_by"),
	}, oldReservationID, nil
}

// InvoiceSyncer exports and imports invoices, keyed by invoice number.
type InvoiceSyncer struct {
	store portal.RentalStore
}

func NewInvoiceSyncer(store portal.RentalStore) *InvoiceSyncer {
	return &InvoiceSyncer{store: store}
}

func (s *InvoiceSyncer) ModelName() string      { return ModelInvoices }
func (s *InvoiceSyncer) Dependencies() []string { return []string{ModelProjects} }

func (s *InvoiceSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelInvoices, dir, func(ctx context.Context) ([]Record, []string, error) {
		invoices, err := s.store.ListInvoices(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(invoices))
		for _, inv := range invoices {
			records = append(records, Record{
				NaturalKey: NaturalKey{inv.InvoiceNumber},
				Fields: map[string]interface{}{
					"invoice_number": inv.InvoiceNumber,
					"project_title":  inv.ProjectTitle,
					"period_start":   FormatDate(inv.PeriodStart),
					"period_end":     FormatDate(inv.PeriodEnd),
					"amount":         FormatDecimal(inv.Amount),
					"currency":       inv.Currency,
					"status":         inv.Status,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *InvoiceSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelInvoices, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			number, err := stringField(rec.Fields, "invoice_number")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetInvoiceByNumber(ctx, number)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			inv, err := invoiceFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateInvoice(ctx, inv)
		},
		update: func(ctx context.Context, rec Record) error {
			inv, err := invoiceFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateInvoice(ctx, inv)
		},
	})
}

func invoiceFromRecord(rec Record) (*portal.Invoice, error) {
	number, err := stringField(rec.Fields, "invoice_number")
	if err != nil {
		return nil, err
	}
	periodStart, err := dateField(rec.Fields, "period_start")
	if err != nil {
		return nil, err
	}
	periodEnd, err := dateField(rec.Fields, "period_end")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(rec.Fields, "amount")
	if err != nil {
		return nil, err
	}
	return &portal.Invoice{
		InvoiceNumber: number,
		ProjectTitle:  optionalStringField(rec.Fields, "project_title"),
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Amount:        amount,
		Currency:      optionalStringField(rec.Fields, "currency"),
		Status:        optionalStringField(rec.Fields, "status"),
	}, nil
}

package trading

import (
	"context"
	"database/sql"
	"sort"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Drift is one field where the stored position disagrees with the ledger
type Drift struct {
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

// ReconcileReport is the outcome of checking one identifier
type ReconcileReport struct {
	Identifier     string  `json:"identifier"`
	Operations     int     `json:"operations"`
	OK             bool    `json:"ok"`
	Drifts         []Drift `json:"drifts,omitempty"`
	InvariantError string  `json:"invariant_error,omitempty"`
	ReplayError    string  `json:"replay_error,omitempty"`
}

// Reconciler rebuilds positions from the operation ledger and compares them
// with the stored rows. It only reports; it never rewrites positions.
// Each identifier is read under the same per-identifier lock the trading
// service holds, inside one transaction.
type Reconciler struct {
	db         *sql.DB
	locks      *KeyedMutex
	positions  *portfolio.PositionRepository
	operations *OperationRepository
	events     *events.Manager
	log        zerolog.Logger
}

// NewReconciler creates a reconciler. locks should be the trading service's
// (see Service.Locks); a nil value gets a private one.
func NewReconciler(
	db *sql.DB,
	positions *portfolio.PositionRepository,
	operations *OperationRepository,
	locks *KeyedMutex,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Reconciler {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Reconciler{
		db:         db,
		locks:      locks,
		positions:  positions,
		operations: operations,
		events:     eventManager,
		log:        log.With().Str("service", "reconciler").Logger(),
	}
}

// Reconcile checks the given identifiers, or every identifier known to either
// the positions table or the ledger when none are given. Reports are sorted by
// identifier.
func (r *Reconciler) Reconcile(ctx context.Context, identifiers []string) ([]ReconcileReport, error) {
	if len(identifiers) == 0 {
		all, err := r.knownIdentifiers(ctx)
		if err != nil {
			return nil, err
		}
		identifiers = all
	}

	reports := make([]ReconcileReport, 0, len(identifiers))
	for _, identifier := range identifiers {
		report, err := r.reconcileOne(ctx, domain.NormalizeIdentifier(identifier))
		if err != nil {
			return nil, err
		}
		if !report.OK {
			r.log.Warn().
				Str("identifier", report.Identifier).
				Int("drifts", len(report.Drifts)).
				Str("invariant_error", report.InvariantError).
				Str("replay_error", report.ReplayError).
				Msg("Position does not match ledger")
			r.events.Emit("trading", &events.ReconciliationFailedData{
				Identifier: report.Identifier,
				Reason:     report.reason(),
			})
		}
		reports = append(reports, report)
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Identifier < reports[j].Identifier })
	return reports, nil
}

func (r *Reconciler) knownIdentifiers(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	positions, err := r.positions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		seen[p.Identifier] = true
	}

	fromLedger, err := r.operations.GetIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	for _, identifier := range fromLedger {
		seen[identifier] = true
	}

	identifiers := make([]string, 0, len(seen))
	for identifier := range seen {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return identifiers, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, identifier string) (ReconcileReport, error) {
	report := ReconcileReport{Identifier: identifier}

	unlock := r.locks.Lock(identifier)
	defer unlock()

	var (
		stored      *domain.Position
		ops         []domain.Operation
		recordedPnL decimal.Decimal
	)
	err := database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		operations := r.operations.WithQuerier(tx)

		var err error
		if stored, err = r.positions.WithQuerier(tx).GetByIdentifier(ctx, identifier); err != nil {
			return err
		}
		if ops, err = operations.GetByIdentifier(ctx, identifier); err != nil {
			return err
		}
		recordedPnL, err = operations.RealizedPnL(ctx, identifier)
		return err
	})
	if err != nil {
		return report, err
	}
	report.Operations = len(ops)

	if stored != nil {
		if err := accounting.CheckInvariant(*stored); err != nil {
			report.InvariantError = err.Error()
		}
	}

	replayed, err := accounting.Replay(ops)
	if err != nil {
		report.ReplayError = err.Error()
		return report, nil
	}

	switch {
	case stored == nil && replayed == nil:
	case stored == nil:
		report.Drifts = append(report.Drifts, Drift{Field: "position", Stored: "missing", Replayed: string(replayed.Status)})
	case replayed == nil:
		report.Drifts = append(report.Drifts, Drift{Field: "position", Stored: string(stored.Status), Replayed: "missing"})
	default:
		report.Drifts = compare(*stored, *replayed)
		if !stored.RealizedPnL.Equal(recordedPnL) {
			report.Drifts = append(report.Drifts, Drift{
				Field:    "recorded_realized_pnl",
				Stored:   stored.RealizedPnL.String(),
				Replayed: recordedPnL.String(),
			})
		}
	}

	report.OK = len(report.Drifts) == 0 && report.InvariantError == ""
	return report, nil
}

func compare(stored, replayed domain.Position) []Drift {
	var drifts []Drift
	add := func(field string, a, b decimal.Decimal, exact bool) {
		if exact && a.Equal(b) || !exact && withinTolerance(a, b) {
			return
		}
		drifts = append(drifts, Drift{Field: field, Stored: a.String(), Replayed: b.String()})
	}

	if stored.Status != replayed.Status {
		drifts = append(drifts, Drift{Field: "status", Stored: string(stored.Status), Replayed: string(replayed.Status)})
	}
	add("total_quantity", stored.TotalQuantity, replayed.TotalQuantity, true)
	add("total_invested", stored.TotalInvested, replayed.TotalInvested, false)
	add("average_price", stored.AveragePrice, replayed.AveragePrice, false)
	add("realized_pnl", stored.RealizedPnL, replayed.RealizedPnL, true)
	return drifts
}

func withinTolerance(a, b decimal.Decimal) bool {
	scale := decimal.Max(a.Abs(), b.Abs(), decimal.NewFromInt(1))
	return a.Sub(b).Abs().LessThanOrEqual(accounting.InvariantTolerance.Mul(scale))
}

func (r ReconcileReport) reason() string {
	switch {
	case r.ReplayError != "":
		return "replay failed: " + r.ReplayError
	case r.InvariantError != "":
		return "invariant violated: " + r.InvariantError
	case len(r.Drifts) > 0:
		return "field " + r.Drifts[0].Field + " differs from ledger"
	}
	return ""
}

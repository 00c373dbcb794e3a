package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

// ErrOptimisticLock is returned when a conditional stock write matched no row.
var ErrOptimisticLock = fmt.Errorf("optimistic lock conflict: %w", port.ErrVersionConflict)

// SQLStore implements port.Store on top of database/sql. The queries use
// only syntax MySQL and SQLite both accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		system sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_number, status, production_system
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.Number, &status, &system)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.Status = domain.OrderStatus(status)
	if system.Valid {
		o.System = &system.String
	}
	return &o, nil
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListHistory returns every entry written under reference, oldest first.
func (s *SQLStore) ListHistory(ctx context.Context, reference string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM stock_history WHERE reference = ?
		ORDER BY id`, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}

type sqlTx struct {
	tx *sql.Tx
}

const lineColumns = `id, order_id, material, article_id, article_ref, color_id, quantity_demanded, status`

func (t *sqlTx) listLines(ctx context.Context, query string, args ...any) ([]domain.RequirementLine, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requirement lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.RequirementLine
	for rows.Next() {
		var (
			l        domain.RequirementLine
			material string
			status   string
			colorID  sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &material, &l.ArticleID, &l.ArticleRef,
			&colorID, &l.QuantityDemanded, &status); err != nil {
			return nil, fmt.Errorf("scan requirement line: %w", err)
		}
		l.Material = domain.Material(material)
		l.Status = domain.LineStatus(status)
		if colorID.Valid {
			l.ColorID = &colorID.Int64
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *sqlTx) ListOutstanding(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error) {
	return t.listLines(ctx, `
		SELECT `+lineColumns+`
		FROM requirement_lines
		WHERE order_id = ? AND material = ? AND status <> ?
		ORDER BY id`,
		orderID, string(material), string(domain.LineStatusCompleted),
	)
}

func (t *sqlTx) ListCompleted(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error) {
	return t.listLines(ctx, `
		SELECT `+lineColumns+`
		FROM requirement_lines
		WHERE order_id = ? AND material = ? AND status = ?
		ORDER BY id`,
		orderID, string(material), string(domain.LineStatusCompleted),
	)
}

func (t *sqlTx) SetLineStatus(ctx context.Context, lineID int64, status domain.LineStatus) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE requirement_lines
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(status), lineID,
	)
	if err != nil {
		return fmt.Errorf("update requirement line: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("requirement line %d not found", lineID)
	}
	return nil
}

func (t *sqlTx) FindStock(ctx context.Context, scope domain.ScopeKey) (*domain.StockRecord, error) {
	var (
		rec         domain.StockRecord
		minQty      sql.NullInt64
		maxQty      sql.NullInt64
		updatedByID sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, current_quantity, version, min_quantity, max_quantity, updated_by_id
		FROM stock_records
		WHERE material = ? AND article_id = ? AND color_id = ? AND warehouse_type = ? AND sub_warehouse = ?`,
		string(scope.Material), scope.ArticleID, scope.ColorID, scope.WarehouseType, scope.SubWarehouse,
	).Scan(&rec.ID, &rec.CurrentQuantity, &rec.Version, &minQty, &maxQty, &updatedByID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock record: %w", err)
	}

	rec.Scope = scope
	rec.MinQuantity = nullIntPtr(minQty)
	rec.MaxQuantity = nullIntPtr(maxQty)
	if updatedByID.Valid {
		rec.UpdatedByID = &updatedByID.Int64
	}
	return &rec, nil
}

func (t *sqlTx) UpdateStock(ctx context.Context, stockID int64, quantity, expectedVersion int, actorID *int64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE stock_records
		SET current_quantity = ?, version = version + 1, updated_by_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		quantity, nullInt64(actorID), stockID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update stock record: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (t *sqlTx) AppendHistory(ctx context.Context, entry domain.HistoryEntry) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_history (
			material, article_id, color_id, warehouse_type, sub_warehouse,
			requirement_line_id, event_kind, previous_qty, change_qty, new_qty, shortfall,
			reason, reference, actor_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Scope.Material), entry.Scope.ArticleID, entry.Scope.ColorID,
		entry.Scope.WarehouseType, entry.Scope.SubWarehouse,
		nullInt64(entry.RequirementLineID), string(entry.EventKind),
		entry.PreviousQty, entry.ChangeQty, entry.NewQty, entry.Shortfall,
		entry.Reason, entry.Reference, nullInt64(entry.ActorID), createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history entry id: %w", err)
	}
	return id, nil
}

// LastIssue looks at the newest issue or return entry of the line. A return
// means the issue was already given back.
func (t *sqlTx) LastIssue(ctx context.Context, orderID, lineID int64) (*domain.HistoryEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM stock_history
		WHERE requirement_line_id = ? AND event_kind IN (?, ?)
		ORDER BY id DESC
		LIMIT 1`,
		lineID, string(domain.EventIssue), string(domain.EventReturn),
	)
	if err != nil {
		return nil, fmt.Errorf("query last issue: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	h, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}
	if h.EventKind != domain.EventIssue || h.Reference != domain.OrderReference(orderID) {
		return nil, nil
	}
	return h, nil
}

const historyColumns = `id, material, article_id, color_id, warehouse_type, sub_warehouse,
	requirement_line_id, event_kind, previous_qty, change_qty, new_qty, shortfall,
	reason, reference, actor_id, created_at`

func scanHistory(rows *sql.Rows) (*domain.HistoryEntry, error) {
	var (
		h        domain.HistoryEntry
		material string
		kind     string
		lineID   sql.NullInt64
		actorID  sql.NullInt64
	)
	if err := rows.Scan(&h.ID, &material, &h.Scope.ArticleID, &h.Scope.ColorID,
		&h.Scope.WarehouseType, &h.Scope.SubWarehouse, &lineID, &kind,
		&h.PreviousQty, &h.ChangeQty, &h.NewQty, &h.Shortfall,
		&h.Reason, &h.Reference, &actorID, &h.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	h.Scope.Material = domain.Material(material)
	h.EventKind = domain.EventKind(kind)
	if lineID.Valid {
		h.RequirementLineID = &lineID.Int64
	}
	if actorID.Valid {
		h.ActorID = &actorID.Int64
	}
	return &h, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// applySchema runs a semicolon separated DDL script one statement at a time.
func applySchema(ctx context.Context, db *sql.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

// The order lifecycle, requirement planning and warehouse setup live outside
// this service. These writers stand in for them when loading data from the
// CLI or preparing a test database.

func (s *SQLStore) SaveOrder(ctx context.Context, order domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET order_number = ?, status = ?, production_system = ?
		WHERE id = ?`,
		order.Number, string(order.Status), order.System, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, status, production_system)
		VALUES (?, ?, ?, ?)`,
		order.ID, order.Number, string(order.Status), order.System,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *SQLStore) AddRequirement(ctx context.Context, line domain.RequirementLine) (int64, error) {
	status := line.Status
	if status == "" {
		status = domain.LineStatusPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requirement_lines (order_id, material, article_id, article_ref, color_id, quantity_demanded, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		line.OrderID, string(line.Material), line.ArticleID, line.ArticleRef,
		nullInt64(line.ColorID), line.QuantityDemanded, string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert requirement line: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLStore) AddStock(ctx context.Context, rec domain.StockRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_records (
			material, article_id, color_id, warehouse_type, sub_warehouse,
			current_quantity, version, min_quantity, max_quantity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Scope.Material), rec.Scope.ArticleID, rec.Scope.ColorID,
		rec.Scope.WarehouseType, rec.Scope.SubWarehouse,
		rec.CurrentQuantity, rec.Version, rec.MinQuantity, rec.MaxQuantity,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stock record: %w", err)
	}
	return res.LastInsertId()
}

// GetStock reads one record in its own transaction, nil when absent.
func (s *SQLStore) GetStock(ctx context.Context, scope domain.ScopeKey) (*domain.StockRecord, error) {
	var rec *domain.StockRecord
	err := s.WithinTx(ctx, func(tx port.Tx) error {
		var err error
		rec, err = tx.FindStock(ctx, scope)
		return err
	})
	return rec, err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_inventory/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresStore implements Store on top of PostgreSQL. Inventory writes use a
// version-conditioned UPDATE, so the database itself rejects lost updates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cred *Credentials) (*PostgresStore, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	fmt.Println("Connected to postgres!")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "inventory_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `INSERT INTO products (id, name, created_at) VALUES ($1, $2, NOW())`

	_, err := s.db.ExecContext(ctx, query, product.ID, product.Name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT id, name, created_at FROM products WHERE id = $1`

	var product domain.Product
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return &product, nil
}

func (s *PostgresStore) InsertInventory(ctx context.Context, inv *domain.Inventory) error {
	query := `INSERT INTO inventory (product_id, total_stock, available_stock, version, updated_at)
	          VALUES ($1, $2, $3, 0, NOW())`

	_, err := s.db.ExecContext(ctx, query, inv.ProductID, inv.TotalStock, inv.AvailableStock)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrInventoryExists
		}
		return fmt.Errorf("insert inventory: %w", err)
	}
	inv.Version = 0
	return nil
}

func (s *PostgresStore) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	query := `SELECT product_id, total_stock, available_stock, version, updated_at
	          FROM inventory WHERE product_id = $1`

	var inv domain.Inventory
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&inv.ProductID,
		&inv.TotalStock,
		&inv.AvailableStock,
		&inv.Version,
		&inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInventoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory by product id: %w", err)
	}
	return &inv, nil
}

func (s *PostgresStore) UpdateInventory(ctx context.Context, inv *domain.Inventory, expectedVersion int64) error {
	query := `UPDATE inventory
	          SET total_stock = $2, available_stock = $3, version = version + 1, updated_at = NOW()
	          WHERE product_id = $1 AND version = $4`

	result, err := s.db.ExecContext(ctx, query, inv.ProductID, inv.TotalStock, inv.AvailableStock, expectedVersion)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inventory rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row moved past expectedVersion or it does not exist.
		if _, getErr := s.GetInventory(ctx, inv.ProductID); errors.Is(getErr, ErrInventoryNotFound) {
			return ErrInventoryNotFound
		}
		return ErrVersionConflict
	}

	inv.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) InsertReservation(ctx context.Context, res *domain.Reservation) error {
	query := `INSERT INTO reservations (id, order_id, product_id, quantity, status, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		res.ID,
		res.OrderID,
		res.ProductID,
		res.Quantity,
		res.Status,
		res.ExpiresAt,
		res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	query := `SELECT id, order_id, product_id, quantity, status, expires_at, created_at
	          FROM reservations WHERE order_id = $1`

	var res domain.Reservation
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&res.ID,
		&res.OrderID,
		&res.ProductID,
		&res.Quantity,
		&res.Status,
		&res.ExpiresAt,
		&res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation by order id: %w", err)
	}
	return &res, nil
}

func (s *PostgresStore) TransitionReservation(ctx context.Context, reservationID string, from, to domain.ReservationStatus) error {
	query := `UPDATE reservations SET status = $3 WHERE id = $1 AND status = $2`

	result, err := s.db.ExecContext(ctx, query, reservationID, from, to)
	if err != nil {
		return fmt.Errorf("transition reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition reservation rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, reservationID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("check reservation existence: %w", checkErr)
		}
		if !exists {
			return ErrReservationNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

func (s *PostgresStore) FindDueReservations(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	query := `SELECT id, order_id, product_id, quantity, status, expires_at, created_at
	          FROM reservations WHERE status = $1 AND expires_at < $2 ORDER BY expires_at`

	rows, err := s.db.QueryContext(ctx, query, domain.StatusReserved, now)
	if err != nil {
		return nil, fmt.Errorf("query due reservations: %w", err)
	}
	defer rows.Close()

	var due []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.OrderID,
			&res.ProductID,
			&res.Quantity,
			&res.Status,
			&res.ExpiresAt,
			&res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		due = append(due, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return due, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `INSERT INTO orders (id, product_id, quantity, created_at) VALUES ($1, $2, $3, $4)`
	_, insertErr := tx.ExecContext(ctx, orderQuery, order.ID, order.ProductID, order.Quantity, order.CreatedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if event != nil {
		eventQuery := `INSERT INTO outbox_events (aggregate_id, event_type, payload, processed, created_at)
		               VALUES ($1, $2, $3, FALSE, NOW())`
		if _, evErr := tx.ExecContext(ctx, eventQuery, event.AggregateID, event.EventType, event.Payload); evErr != nil {
			return fmt.Errorf("insert outbox event: %w", evErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT id, product_id, quantity, created_at FROM orders WHERE id = $1`

	var order domain.Order
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.ProductID,
		&order.Quantity,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return &order, nil
}

func (s *PostgresStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, processed, created_at
	          FROM outbox_events WHERE processed = FALSE ORDER BY id LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.Processed, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event row: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE outbox_events SET processed = TRUE WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("mark event as processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
	"github.com/mmeshcher/cafe-order-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrConcurrentUpdate возвращается, когда переход состояния не применился,
// потому что другая операция успела изменить сущность первой.
var ErrConcurrentUpdate = errors.New("entity was modified concurrently")

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных сбоях БД: serialization failure,
// deadlock и обрывы соединения. Бизнес-ошибки не ретраятся.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}
		if isTransientError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateMember сохраняет нового участника и возвращает его идентификатор.
func (r *PostgresRepository) CreateMember(ctx context.Context, m *model.Member) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO members (name, phone_number, gender, birth_date, status, join_time)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			m.Name, m.PhoneNumber, string(m.Gender), m.BirthDate, string(m.Status), m.JoinTime,
		).Scan(&id)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("phone %s: %w", m.PhoneNumber, apperr.ErrPhoneExists)
		}
		return 0, fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

// GetMemberByID возвращает участника по идентификатору.
func (r *PostgresRepository) GetMemberByID(ctx context.Context, id int64) (*model.Member, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, phone_number, gender, birth_date, status, withdrawal_time, join_time
		 FROM members WHERE id = $1`,
		id,
	)

	var (
		m      model.Member
		gender string
		status string
	)
	err := row.Scan(&m.ID, &m.Name, &m.PhoneNumber, &gender, &m.BirthDate, &status, &m.WithdrawalTime, &m.JoinTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	m.Gender = model.Gender(gender)
	m.Status = model.MemberStatus(status)
	return &m, nil
}

// UpdateMemberStatus применяет переход статуса участника с проверкой исходного
// состояния. Переход применяется только если участник всё ещё находится в
// статусе from; иначе возвращается ErrConcurrentUpdate.
func (r *PostgresRepository) UpdateMemberStatus(ctx context.Context, id int64, from, to model.MemberStatus, withdrawalTime *time.Time) error {
	var cmdTag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var execErr error
		cmdTag, execErr = r.pool.Exec(ctx,
			`UPDATE members SET status = $3, withdrawal_time = $4 WHERE id = $1 AND status = $2`,
			id, string(from), string(to), withdrawalTime,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update member status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check member exists: %w", err)
		}
		if !exists {
			return apperr.ErrMemberNotFound
		}
		return ErrConcurrentUpdate
	}

	return nil
}

// GetProductsByIDs возвращает товары по списку идентификаторов.
// Порядок результата не определён; вызывающая сторона сверяет количество.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price::text FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var (
			p        model.Product
			priceStr string
		)
		if err := rows.Scan(&p.ID, &p.Name, &priceStr); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", priceStr, err)
		}
		p.Price = price

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// CreatePayment сохраняет запись о платеже до того, как появится заказ.
func (r *PostgresRepository) CreatePayment(ctx context.Context, paymentID string, paymentTime time.Time) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO payments (payment_id, payment_time) VALUES ($1, $2) RETURNING id`,
			paymentID, paymentTime,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

// LinkPaymentToOrder привязывает сохранённый платёж к созданному заказу.
func (r *PostgresRepository) LinkPaymentToOrder(ctx context.Context, paymentID string, orderID int64) error {
	err := r.withRetry(ctx, func() error {
		_, execErr := r.pool.Exec(ctx,
			`UPDATE payments SET order_id = $2 WHERE payment_id = $1`,
			paymentID, orderID,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("link payment to order: %w", err)
	}
	return nil
}

// GetPaymentByPaymentID возвращает запись о платеже по внешнему идентификатору.
func (r *PostgresRepository) GetPaymentByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, payment_id, order_id, payment_time FROM payments WHERE payment_id = $1`,
		paymentID,
	)

	var p model.Payment
	err := row.Scan(&p.ID, &p.PaymentID, &p.OrderID, &p.PaymentTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return &p, nil
}

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции
// и возвращает идентификатор заказа. Позиции сохраняются в порядке добавления.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	var orderID int64
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (member_id, status, payment_id, order_time)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			o.MemberID, string(o.Status), o.PaymentID, o.OrderTime,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, line := range o.Lines {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_lines (order_id, product_id, quantity, line_no)
				 VALUES ($1, $2, $3, $4)`,
				orderID, line.ProductID, line.Quantity, i,
			)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// GetOrderByID возвращает заказ вместе с позициями.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, member_id, status, payment_id, order_time, cancel_time
		 FROM orders WHERE id = $1`,
		id,
	)

	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.MemberID, &status, &o.PaymentID, &o.OrderTime, &o.CancelTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY line_no`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line model.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &o, nil
}

// MarkOrderCancelled переводит заказ в статус CANCELLED. Переход применяется
// только к подтверждённому заказу; проигравший из двух конкурентных отмен
// получает ErrConcurrentUpdate.
func (r *PostgresRepository) MarkOrderCancelled(ctx context.Context, orderID int64, cancelTime time.Time) error {
	var cmdTag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var execErr error
		cmdTag, execErr = r.pool.Exec(ctx,
			`UPDATE orders SET status = $2, cancel_time = $3 WHERE id = $1 AND status = $4`,
			orderID, string(model.OrderStatusCancelled), cancelTime, string(model.OrderStatusConfirmed),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("mark order cancelled: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return apperr.ErrOrderNotFound
		}
		return ErrConcurrentUpdate
	}

	return nil
}

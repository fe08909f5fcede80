package tr

import (
	"context"
	"sync"

	"github.com/DRSN-tech/catalog-backend/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type (
	txKey    struct{}
	stateKey struct{}
)

// Querier — общее подмножество pgx.Tx и pgxpool.Pool, которым пользуются репозитории.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxFromCtx извлекает объект транзакции (pgx.Tx) из контекста
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}

// QuerierFromCtx возвращает активную транзакцию из контекста, а если её нет — fallback (обычно пул).
func QuerierFromCtx(ctx context.Context, fallback Querier) Querier {
	if tx, err := TxFromCtx(ctx); err == nil {
		return tx
	}
	return fallback
}

type committer interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	IsActive() bool
}

// Tx — транзакция с явными Commit/Rollback и хуками, которые выполняются только после успешного коммита.
type Tx struct {
	c           committer
	mapErr      func(error) error
	mu          sync.Mutex
	afterCommit []func()
}

// Bind кладёт транзакцию в контекст. raw — драйверный объект (pgx.Tx), доступный репозиториям через TxFromCtx.
func Bind(ctx context.Context, raw any, c committer) (context.Context, *Tx) {
	tx := &Tx{c: c}
	if raw != nil {
		ctx = context.WithValue(ctx, txKey{}, raw)
	}
	return context.WithValue(ctx, stateKey{}, tx), tx
}

// AfterCommit регистрирует fn для вызова после успешного коммита транзакции из контекста.
// При откате fn не вызывается никогда.
func AfterCommit(ctx context.Context, fn func()) error {
	tx, ok := ctx.Value(stateKey{}).(*Tx)
	if !ok {
		return e.ErrTransactionNotFound
	}

	tx.mu.Lock()
	tx.afterCommit = append(tx.afterCommit, fn)
	tx.mu.Unlock()
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.c.Commit(ctx); err != nil {
		t.drop()
		if t.mapErr != nil {
			return t.mapErr(err)
		}
		return err
	}

	for _, fn := range t.drop() {
		fn()
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.drop()
	return t.c.Rollback(ctx)
}

func (t *Tx) IsActive() bool {
	return t.c.IsActive()
}

func (t *Tx) drop() []func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	hooks := t.afterCommit
	t.afterCommit = nil
	return hooks
}

// Beginner открывает транзакции PostgreSQL через go-transaction-manager.
type Beginner struct {
	db     transaction.Transactional
	opts   pgx.TxOptions
	mapErr func(error) error
}

// NewBeginner создаёт Beginner. mapErr (может быть nil) преобразует ошибки коммита в доменные.
func NewBeginner(db transaction.Transactional, mapErr func(error) error) *Beginner {
	return &Beginner{db: db, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, mapErr: mapErr}
}

func (b *Beginner) Begin(ctx context.Context) (context.Context, *Tx, error) {
	ctx, t, err := transaction.NewTransaction(ctx, b.opts, b.db)
	if err != nil {
		return nil, nil, e.Wrap("tr.Begin", err)
	}

	ctx, tx := Bind(ctx, t.Transaction(), t)
	tx.mapErr = b.mapErr
	return ctx, tx, nil
}

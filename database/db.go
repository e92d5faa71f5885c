package database

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/internal/apierror"
)

// Declare a package-level variable to hold the singleton instance.
var instance *Datasource
var once sync.Once

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Datasource is the Postgres implementation of Store.
type Datasource struct {
	Conn *sql.DB
}

// repository implements Repository on top of a querier.
type repository struct {
	q querier
}

func NewDataSource(configuration *config.Configuration) (Store, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens a pooled connection and verifies it with a ping.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}

// RunInTx executes fn inside a serializable transaction. Serialization failures and
// constraint races surface as CONCURRENCY_CONFLICT so callers can retry.
func (d *Datasource) RunInTx(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapDBError(err, "Failed to begin transaction")
	}

	if err := fn(&repository{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logrus.Errorf("rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(err, "Failed to commit transaction")
	}
	return nil
}

func (d *Datasource) Close() error {
	return d.Conn.Close()
}

func wrapDBError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "serialization_failure", "deadlock_detected":
			return apierror.NewAPIError(apierror.ErrConcurrencyConflict, "Concurrent update detected, retry the request", err)
		case "unique_violation":
			return apierror.NewAPIError(apierror.ErrConcurrencyConflict, "A conflicting record was written concurrently", err)
		case "check_violation", "foreign_key_violation":
			return apierror.NewAPIError(apierror.ErrInvalidInput, message, err)
		}
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, message, errors.Wrap(err, message))
}

func notFoundOr(err error, entity, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierror.NewAPIError(apierror.ErrNotFound, entity+" not found", nil)
	}
	return wrapDBError(err, message)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func expectOneRow(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return wrapDBError(err, "Failed to read affected rows")
	}
	if n == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, entity+" not found", nil)
	}
	return nil
}

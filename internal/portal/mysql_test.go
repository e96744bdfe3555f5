package portal

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db.example.edu", Port: 3306, Username: "portal", Password: "pw", Database: "coldfront"}
	dsn := cfg.DSN()
	assert.Equal(t, "portal:pw@tcp(db.example.edu:3306)/coldfront?parseTime=true&loc=UTC", dsn)
}

func TestListUsers(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "username", "email", "first_name", "last_name", "is_active"}).
		AddRow(1, "alice", "alice@example.edu", "Alice", "A", true).
		AddRow(2, "bob", "bob@example.edu", "", "", false)
	mock.ExpectQuery("SELECT id, username, email, first_name, last_name, is_active FROM users ORDER BY username").
		WillReturnRows(rows)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.True(t, users[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsernameAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, first_name, last_name, is_active FROM users WHERE username = ?")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "first_name", "last_name", "is_active"}))

	u, ok, err := store.GetUserByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", "alice@example.edu", "Alice", "A", true).
		WillReturnResult(sqlmock.NewResult(7, 1))

	u := &User{Username: "alice", Email: "alice@example.edu", FirstName: "Alice", LastName: "A", IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNodeRateDecimalArg(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO rental_node_rates").
		WithArgs("a100-8x", sqlmock.AnyArg(), "12.5000", "USD").
		WillReturnResult(sqlmock.NewResult(3, 1))

	nr := &NodeRate{NodeTypeName: "a100-8x", HourlyRate: big.NewRat(25, 2), Currency: "USD"}
	require.NoError(t, store.CreateNodeRate(context.Background(), nr))
	assert.Equal(t, int64(3), nr.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransactionCommit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", "", "", "", false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InTransaction(context.Background(), func(tx Store) error {
		return tx.CreateUser(context.Background(), &User{Username: "alice"})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransactionRollback(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", "", "", "", false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	err := store.InTransaction(context.Background(), func(tx Store) error {
		if err := tx.CreateUser(context.Background(), &User{Username: "alice"}); err != nil {
			return err
		}
		return fmt.Errorf("record errors; roll back")
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedTransactionRejected(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.InTransaction(context.Background(), func(tx Store) error {
		inner, ok := tx.(*MySQLStore)
		require.True(t, ok)
		return inner.InTransaction(context.Background(), func(Store) error { return nil })
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested transactions")
}

func TestScanDecimal(t *testing.T) {
	r, err := scanDecimal(nullString("12.5000"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cmp(big.NewRat(25, 2)))

	r, err = scanDecimal(nullString(""))
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = scanDecimal(nullString("not-a-number"))
	assert.Error(t, err)
}

package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type stubDB struct {
	rows     [][]any
	queryErr error
	execTag  string
	execErr  error
	lastSQL  string
	lastArgs []any
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL, s.lastArgs = sql, args
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag(s.execTag), nil
}

func (s *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.lastSQL, s.lastArgs = sql, args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{values: s.rows, index: -1}, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.lastSQL, s.lastArgs = sql, args
	if len(s.rows) == 0 {
		return &stubRow{err: pgx.ErrNoRows}
	}
	return &stubRow{values: s.rows[0]}
}

type stubRows struct {
	values [][]any
	index  int
}

func (r *stubRows) Close() { r.index = len(r.values) }
func (r *stubRows) Err() error { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Conn() *pgx.Conn { return nil }

func (r *stubRows) Next() bool {
	if r.index+1 >= len(r.values) {
		r.index = len(r.values)
		return false
	}
	r.index++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.index < 0 || r.index >= len(r.values) {
		return fmt.Errorf("no row available")
	}
	return scanInto(r.values[r.index], dest)
}

func (r *stubRows) Values() ([]any, error) {
	if r.index < 0 || r.index >= len(r.values) {
		return nil, fmt.Errorf("no row available")
	}
	return r.values[r.index], nil
}

type stubRow struct {
	values []any
	err    error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = values[i].(string)
		case *int64:
			*p = values[i].(int64)
		case *time.Time:
			*p = values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestStoreRolesForUser(t *testing.T) {
	db := &stubDB{rows: [][]any{{"admin"}, {"editor"}, {"admin"}}}
	roles, err := NewStore(db).RolesForUser(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "editor"}, roles.Names())
	require.Contains(t, db.lastSQL, "FROM user_roles")
	require.Equal(t, []any{int64(42)}, db.lastArgs)
}

func TestStoreRolesForUserEmpty(t *testing.T) {
	roles, err := NewStore(&stubDB{}).RolesForUser(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, roles)
	require.Zero(t, roles.Len())
}

func TestStoreRolesForUserError(t *testing.T) {
	down := errors.New("conn closed")
	_, err := NewStore(&stubDB{queryErr: down}).RolesForUser(context.Background(), 1)
	require.ErrorIs(t, err, down)
}

func TestStoreListRoles(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &stubDB{rows: [][]any{
		{int64(1), "admin", "Full access", now, now},
		{int64(2), "auditor", "Read only", now, now},
	}}
	roles, err := NewStore(db).ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	require.Equal(t, "auditor", roles[1].Name)
	require.Equal(t, now, roles[0].CreatedAt)
}

func TestStoreEnsureRole(t *testing.T) {
	now := time.Now().UTC()
	db := &stubDB{rows: [][]any{{int64(7), "editor", "Edits posts", now, now}}}
	role, err := NewStore(db).EnsureRole(context.Background(), "editor", "Edits posts")
	require.NoError(t, err)
	require.Equal(t, int64(7), role.ID)
	require.Equal(t, "editor", db.lastArgs[0])
	require.True(t, strings.Contains(db.lastSQL, "ON CONFLICT (name)"))

	_, err = NewStore(db).EnsureRole(context.Background(), " ", "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = NewStore(db).EnsureRole(context.Background(), " editor", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestStoreAssignRole(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, NewStore(&stubDB{execTag: "INSERT 0 1"}).AssignRole(ctx, 4, "editor"))
	require.ErrorIs(t, NewStore(&stubDB{execTag: "INSERT 0 0"}).AssignRole(ctx, 4, "ghost"), ErrNotFound)

	dup := &stubDB{execErr: &pgconn.PgError{Code: "23505"}}
	require.ErrorIs(t, NewStore(dup).AssignRole(ctx, 4, "editor"), ErrDuplicate)

	missingUser := &stubDB{execErr: &pgconn.PgError{Code: "23503"}}
	require.ErrorIs(t, NewStore(missingUser).AssignRole(ctx, 99, "editor"), ErrNotFound)

	other := &stubDB{execErr: &pgconn.PgError{Code: "40001"}}
	err := NewStore(other).AssignRole(ctx, 4, "editor")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestStoreRemoveRole(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, NewStore(&stubDB{execTag: "DELETE 1"}).RemoveRole(ctx, 4, "editor"))
	require.ErrorIs(t, NewStore(&stubDB{execTag: "DELETE 0"}).RemoveRole(ctx, 4, "editor"), ErrNotFound)
}

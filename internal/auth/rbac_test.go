package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

// fakeDB is a minimal store.DBTX that serves scripted QueryRow results,
// letting RequireTenantRole/RequireSuperAdmin be tested without a Postgres
// connection — the pack has no DB-mocking library, so this follows the
// teacher's own preference for plain stdlib testing over adding one.
type fakeDB struct {
	isSuperAdmin bool
	memberRole   string
	hasMember    bool
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("Exec not implemented in fake")
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("Query not implemented in fake")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case containsAny(sql, "is_super_admin FROM users"):
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*bool)) = f.isSuperAdmin
			return nil
		}}
	case containsAny(sql, "role FROM members"):
		return fakeRow{scan: func(dest ...any) error {
			if !f.hasMember {
				return pgx.ErrNoRows
			}
			*(dest[0].(*string)) = f.memberRole
			return nil
		}}
	default:
		return fakeRow{scan: func(dest ...any) error {
			return errors.New("fakeDB: unhandled query: " + sql)
		}}
	}
}

func containsAny(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func TestRequireTenantRole(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name     string
		id       *Identity
		db       *fakeDB
		required Role
		wantErr  apperr.Kind
		wantOK   bool
	}{
		{
			name:    "nil identity unauthorized",
			id:      nil,
			db:      &fakeDB{},
			wantErr: apperr.KindUnauthorized,
		},
		{
			name:     "super admin bypasses member check",
			id:       &Identity{UserID: userID},
			db:       &fakeDB{isSuperAdmin: true},
			required: RoleOwner,
			wantOK:   true,
		},
		{
			name:     "member meets required role",
			id:       &Identity{UserID: userID},
			db:       &fakeDB{hasMember: true, memberRole: "manager"},
			required: RoleContributor,
			wantOK:   true,
		},
		{
			name:     "member below required role forbidden",
			id:       &Identity{UserID: userID},
			db:       &fakeDB{hasMember: true, memberRole: "viewer"},
			required: RoleManager,
			wantErr:  apperr.KindForbidden,
		},
		{
			name:     "non-member forbidden",
			id:       &Identity{UserID: userID},
			db:       &fakeDB{hasMember: false},
			required: RoleViewer,
			wantErr:  apperr.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := store.NewQueries(tt.db)
			err := RequireTenantRole(context.Background(), q, tt.id, tenantID, tt.required)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if apperr.KindOf(err) != tt.wantErr {
				t.Errorf("kind = %v, want %v", apperr.KindOf(err), tt.wantErr)
			}
		})
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	userID := uuid.New()

	t.Run("nil identity unauthorized", func(t *testing.T) {
		q := store.NewQueries(&fakeDB{})
		if err := RequireSuperAdmin(context.Background(), q, nil); apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Errorf("kind = %v, want unauthorized", apperr.KindOf(err))
		}
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		q := store.NewQueries(&fakeDB{isSuperAdmin: false})
		id := &Identity{UserID: userID}
		if err := RequireSuperAdmin(context.Background(), q, id); apperr.KindOf(err) != apperr.KindForbidden {
			t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		q := store.NewQueries(&fakeDB{isSuperAdmin: true})
		id := &Identity{UserID: userID}
		if err := RequireSuperAdmin(context.Background(), q, id); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleOwner, RoleViewer, true},
		{RoleViewer, RoleOwner, false},
		{RoleManager, RoleManager, true},
		{Role("bogus"), RoleViewer, false},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.required); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

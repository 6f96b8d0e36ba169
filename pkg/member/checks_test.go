package member

import (
	"testing"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

func TestCheckMemberQuota(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		plan    string
		wantErr bool
	}{
		{"under limit ok", 0, "free", false},
		{"at limit rejected", store.PlanMaxMembers("free"), "free", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkMemberQuota(tt.count, tt.plan)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if apperr.KindOf(err) != apperr.KindForbidden {
					t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckNotLastOwner(t *testing.T) {
	if err := checkNotLastOwner(2, "cannot demote the last owner"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := checkNotLastOwner(1, "cannot demote the last owner")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if apperr.KindOf(err) != apperr.KindBadRequest {
		t.Errorf("kind = %v, want bad_request", apperr.KindOf(err))
	}
}

func TestCheckNotSelf(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if err := checkNotSelf(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := checkNotSelf(a, a)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if apperr.KindOf(err) != apperr.KindBadRequest {
		t.Errorf("kind = %v, want bad_request", apperr.KindOf(err))
	}
}

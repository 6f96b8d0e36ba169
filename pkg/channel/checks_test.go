package channel

import (
	"testing"

	"github.com/zeroclaw-labs/platform/internal/apperr"
	"github.com/zeroclaw-labs/platform/internal/store"
)

func TestCheckChannelQuota(t *testing.T) {
	if err := checkChannelQuota(0, "free"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := checkChannelQuota(store.PlanMaxChannels("free"), "free")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
	}
}

package participant

import (
	"errors"
	"testing"

	"github.com/rpams/tontine-core/internal/domain"
)

func TestJoinRequestValidate(t *testing.T) {
	if err := (&JoinRequest{SharesCount: -1}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("negative shares: got %v, want ErrValidation", err)
	}
	if err := (&JoinRequest{SharesCount: 0}).Validate(); err != nil {
		t.Errorf("zero shares (defaults to 1): got %v, want nil", err)
	}
	if err := (&JoinRequest{SharesCount: 2}).Validate(); err != nil {
		t.Errorf("two shares: got %v, want nil", err)
	}
}

func TestTotalShares(t *testing.T) {
	ps := []Participant{
		{ID: "p1", SharesCount: 1},
		{ID: "p2", SharesCount: 3},
		{ID: "p3", SharesCount: 2},
	}
	if got := TotalShares(ps); got != 6 {
		t.Errorf("TotalShares = %d, want 6", got)
	}
	if got := TotalShares(nil); got != 0 {
		t.Errorf("TotalShares(nil) = %d, want 0", got)
	}
}

func TestIndexByID(t *testing.T) {
	ps := []Participant{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	idx := IndexByID(ps)
	if len(idx) != 3 {
		t.Fatalf("index size = %d, want 3", len(idx))
	}
	for i, p := range ps {
		if idx[p.ID] != i {
			t.Errorf("idx[%s] = %d, want %d", p.ID, idx[p.ID], i)
		}
	}
}

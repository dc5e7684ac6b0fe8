package journal

import (
	"testing"

	"github.com/google/uuid"
)

func TestEntryNormalize(t *testing.T) {
	e := Entry{Kind: KindOrder, Code: "005930"}
	e.normalize()

	if e.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if e.CreatedAt == 0 {
		t.Error("CreatedAt not assigned")
	}
}

func TestEntryNormalizePreservesExplicitValues(t *testing.T) {
	id := uuid.New()
	e := Entry{ID: id, CreatedAt: 1766455815123456}
	e.normalize()

	if e.ID != id {
		t.Errorf("ID = %s, want preserved %s", e.ID, id)
	}
	if e.CreatedAt != 1766455815123456 {
		t.Errorf("CreatedAt = %d, want preserved", e.CreatedAt)
	}
}

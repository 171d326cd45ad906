package catalog_test

import (
	"testing"

	"github.com/zhouzirui/debate-arena/backend/internal/model/catalog"
)

func TestMergeSkipsExistingIDs(t *testing.T) {
	base := []catalog.Model{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	extra := []catalog.Model{{ID: "b", Name: "B changed"}, {ID: "c", Name: "C"}}

	merged := catalog.Merge(base, extra)

	if len(merged) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(merged))
	}
	if merged[1].Name != "B" {
		t.Fatalf("existing entry overwritten: %+v", merged[1])
	}
	if merged[2].ID != "c" {
		t.Fatalf("new entry not appended: %+v", merged)
	}
}

func TestMergeWithEmptyBase(t *testing.T) {
	extra := []catalog.Model{{ID: "a"}, {ID: "a"}}

	merged := catalog.Merge(nil, extra)
	if len(merged) != 1 {
		t.Fatalf("duplicate ids within the import must collapse, got %d entries", len(merged))
	}
}

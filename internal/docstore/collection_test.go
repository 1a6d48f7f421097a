package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
)

type record struct {
	ID        string         `json:"id" bson:"id"`
	Kind      int            `json:"kind" bson:"kind"`
	Active    bool           `json:"active" bson:"active"`
	Tags      []string       `json:"tags" bson:"tags"`
	Counts    map[string]int `json:"counts" bson:"counts"`
	Prefs     prefs          `json:"prefs" bson:"prefs"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

type prefs struct {
	Notify bool `json:"notify" bson:"notify"`
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// runCollectionSuite checks the behaviour every backend must share.
func runCollectionSuite(t *testing.T, open func(t *testing.T) docstore.Collection[string, record]) {
	ctx := context.Background()

	t.Run("FindOneMissing", func(t *testing.T) {
		c := open(t)
		_, err := c.FindOne(ctx, "nope")
		if !errors.Is(err, docstore.ErrNoDocument) {
			t.Fatalf("FindOne missing: got %v, want ErrNoDocument", err)
		}
	})

	t.Run("UpsertThenFindOne", func(t *testing.T) {
		c := open(t)
		in := &record{ID: "a", Kind: 2, Active: true, Tags: []string{"x"}, CreatedAt: epoch}
		if err := c.Upsert(ctx, "a", in); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		got, err := c.FindOne(ctx, "a")
		if err != nil {
			t.Fatalf("FindOne: %v", err)
		}
		if got.Kind != 2 || !got.Active || len(got.Tags) != 1 || !got.CreatedAt.Equal(epoch) {
			t.Errorf("FindOne = %+v, want the upserted record", got)
		}
	})

	t.Run("SetLeavesOtherFieldsUntouched", func(t *testing.T) {
		c := open(t)
		in := &record{ID: "a", Kind: 2, Active: true, Tags: []string{"x", "y"}}
		if err := c.Upsert(ctx, "a", in); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := c.Set(ctx, "a", docstore.Fields{"active": false}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := c.FindOne(ctx, "a")
		if err != nil {
			t.Fatalf("FindOne: %v", err)
		}
		if got.Active {
			t.Error("Set did not change active")
		}
		if got.Kind != 2 || len(got.Tags) != 2 {
			t.Errorf("Set touched other fields: %+v", got)
		}
	})

	t.Run("SetReplacesMapsWhole", func(t *testing.T) {
		c := open(t)
		in := &record{ID: "a", Counts: map[string]int{"o1": 1, "o2": 2}}
		if err := c.Upsert(ctx, "a", in); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		in.Counts = map[string]int{"o2": 3}
		if err := c.Upsert(ctx, "a", in); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		got, err := c.FindOne(ctx, "a")
		if err != nil {
			t.Fatalf("FindOne: %v", err)
		}
		if len(got.Counts) != 1 || got.Counts["o2"] != 3 {
			t.Errorf("Counts = %v, want map[o2:3]", got.Counts)
		}
	})

	t.Run("FilteredFindAndCount", func(t *testing.T) {
		c := open(t)
		seed := []*record{
			{ID: "a", Kind: 1, Active: true, Prefs: prefs{Notify: true}, CreatedAt: epoch.Add(-48 * time.Hour)},
			{ID: "b", Kind: 1, Active: false, CreatedAt: epoch.Add(-1 * time.Hour)},
			{ID: "c", Kind: 2, Active: true, CreatedAt: epoch.Add(time.Hour)},
		}
		for _, r := range seed {
			if err := c.Upsert(ctx, r.ID, r); err != nil {
				t.Fatalf("Upsert %s: %v", r.ID, err)
			}
		}

		tests := []struct {
			name   string
			filter docstore.Filter
			want   int64
		}{
			{"all", nil, 3},
			{"bool", docstore.Where(docstore.Eq("active", true)), 2},
			{"int", docstore.Where(docstore.Eq("kind", 1)), 2},
			{"string", docstore.Where(docstore.Eq("id", "c")), 1},
			{"nested", docstore.Where(docstore.Eq("prefs.notify", true)), 1},
			{"time lt", docstore.Where(docstore.Lt("created_at", epoch)), 2},
			{"conjunction", docstore.Where(docstore.Eq("active", true), docstore.Lt("created_at", epoch)), 1},
		}
		for _, tc := range tests {
			n, err := c.Count(ctx, tc.filter)
			if err != nil {
				t.Fatalf("%s: Count: %v", tc.name, err)
			}
			if n != tc.want {
				t.Errorf("%s: Count = %d, want %d", tc.name, n, tc.want)
			}
			found, err := c.Find(ctx, tc.filter)
			if err != nil {
				t.Fatalf("%s: Find: %v", tc.name, err)
			}
			if int64(len(found)) != tc.want {
				t.Errorf("%s: Find returned %d records, want %d", tc.name, len(found), tc.want)
			}
		}
	})

	t.Run("UpdateManyAndDeleteMany", func(t *testing.T) {
		c := open(t)
		for i, id := range []string{"a", "b", "c"} {
			r := &record{ID: id, Kind: i, Active: true, CreatedAt: epoch.Add(time.Duration(i) * time.Hour)}
			if err := c.Upsert(ctx, id, r); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}
		n, err := c.UpdateMany(ctx,
			docstore.Where(docstore.Lt("created_at", epoch.Add(90*time.Minute))),
			docstore.Fields{"active": false},
		)
		if err != nil {
			t.Fatalf("UpdateMany: %v", err)
		}
		if n != 2 {
			t.Errorf("UpdateMany changed %d, want 2", n)
		}
		if active, _ := c.Count(ctx, docstore.Where(docstore.Eq("active", true))); active != 1 {
			t.Errorf("active count = %d, want 1", active)
		}

		n, err = c.DeleteMany(ctx, docstore.Where(docstore.Eq("active", false)))
		if err != nil {
			t.Fatalf("DeleteMany: %v", err)
		}
		if n != 2 {
			t.Errorf("DeleteMany removed %d, want 2", n)
		}
		if _, err := c.FindOne(ctx, "c"); err != nil {
			t.Errorf("survivor c: %v", err)
		}
	})

	t.Run("DeleteMissingIsNoError", func(t *testing.T) {
		c := open(t)
		if err := c.Delete(ctx, "ghost"); err != nil {
			t.Errorf("Delete missing: %v", err)
		}
	})

	t.Run("RejectsBadFieldNames", func(t *testing.T) {
		c := open(t)
		if err := c.Set(ctx, "a", docstore.Fields{"x'; drop": 1}); err == nil {
			t.Error("Set accepted an invalid field name")
		}
		if _, err := c.Find(ctx, docstore.Where(docstore.Eq("a-b", 1))); err == nil {
			t.Error("Find accepted an invalid field name")
		}
	})
}

func TestMemoryCollection(t *testing.T) {
	runCollectionSuite(t, func(*testing.T) docstore.Collection[string, record] {
		return docstore.NewMemory[string, record]()
	})
}

func TestMemory_CountsReads(t *testing.T) {
	ctx := context.Background()
	m := docstore.NewMemory[string, record]()
	_ = m.Upsert(ctx, "a", &record{ID: "a"})
	_, _ = m.FindOne(ctx, "a")
	_, _ = m.FindOne(ctx, "b")
	if got := m.Reads(); got != 2 {
		t.Errorf("Reads = %d, want 2", got)
	}
	if got := m.Writes(); got != 1 {
		t.Errorf("Writes = %d, want 1", got)
	}
}

func TestMemory_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := docstore.NewMemory[string, record]()
	if err := m.Upsert(ctx, "a", &record{ID: "a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Upsert with cancelled ctx: got %v, want context.Canceled", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after cancelled write, want 0", m.Len())
	}
}

func TestWithTimeoutCollection(t *testing.T) {
	runCollectionSuite(t, func(*testing.T) docstore.Collection[string, record] {
		return docstore.WithTimeout[string, record](docstore.NewMemory[string, record](), time.Second)
	})
}

func TestWithTimeout_ZeroReturnsCollection(t *testing.T) {
	m := docstore.NewMemory[string, record]()
	if got := docstore.WithTimeout[string, record](m, 0); got != docstore.Collection[string, record](m) {
		t.Error("WithTimeout(0) wrapped the collection")
	}
}

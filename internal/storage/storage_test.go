package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rewired-gh/oracleconf/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSeries(n int) models.Series {
	series := make(models.Series, n)
	for i := range series {
		series[i] = models.Observation{
			Time:       int64(1_700_000_000 + i/2), // duplicate timestamps are allowed
			Price:      100 + float64(i),
			Confidence: 50 + float64(i%7),
		}
	}
	return series
}

func TestStorage_SaveAndLoadSeries(t *testing.T) {
	s := newTestStorage(t)
	series := testSeries(25)

	id, err := s.SaveSeries("btc-usd", "prices.csv", series)
	if err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("import ID %q is not a UUID: %v", id, err)
	}

	got, err := s.LoadSeries("btc-usd")
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if len(got) != len(series) {
		t.Fatalf("got %d observations, want %d", len(got), len(series))
	}
	for i := range series {
		if got[i] != series[i] {
			t.Errorf("observation %d: got %+v, want %+v", i, got[i], series[i])
		}
	}
}

func TestStorage_LoadSeries_NotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.LoadSeries("nonexistent"); err == nil {
		t.Error("expected error for missing feed")
	}
}

func TestStorage_SaveSeries_ReplacesFeed(t *testing.T) {
	s := newTestStorage(t)

	first, err := s.SaveSeries("eth-usd", "a.csv", testSeries(10))
	if err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	second, err := s.SaveSeries("eth-usd", "b.csv", testSeries(4))
	if err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if first == second {
		t.Error("expected a new import ID for the replacement")
	}

	got, _ := s.LoadSeries("eth-usd")
	if len(got) != 4 {
		t.Errorf("got %d observations after replace, want 4", len(got))
	}

	imports, err := s.ListImports()
	if err != nil {
		t.Fatalf("ListImports: %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("got %d imports, want 1", len(imports))
	}
	if imports[0].Source != "b.csv" || imports[0].Rows != 4 {
		t.Errorf("unexpected import record: %+v", imports[0])
	}
}

func TestStorage_SaveSeries_RejectsInvalid(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.SaveSeries("x", "", models.Series{}); !errors.Is(err, models.ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}

	bad := models.Series{{Time: 2, Price: 1}, {Time: 1, Price: 1}}
	if _, err := s.SaveSeries("x", "", bad); !errors.Is(err, models.ErrMalformedSeries) {
		t.Errorf("expected ErrMalformedSeries, got %v", err)
	}

	if _, err := s.SaveSeries("", "", testSeries(2)); err == nil {
		t.Error("expected error for empty feed")
	}
}

func TestStorage_DeleteFeed(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.SaveSeries("sol-usd", "", testSeries(5)); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if _, err := s.SaveSeries("btc-usd", "", testSeries(3)); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}

	if err := s.DeleteFeed("sol-usd"); err != nil {
		t.Fatalf("DeleteFeed: %v", err)
	}
	if _, err := s.LoadSeries("sol-usd"); err == nil {
		t.Error("deleted feed should not load")
	}
	var orphans int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE feed = 'sol-usd'`).Scan(&orphans); err != nil {
		t.Fatalf("count observations: %v", err)
	}
	if orphans != 0 {
		t.Errorf("got %d orphaned observations, want 0", orphans)
	}

	if got, _ := s.LoadSeries("btc-usd"); len(got) != 3 {
		t.Errorf("other feed affected by delete: got %d observations", len(got))
	}
	if err := s.DeleteFeed("sol-usd"); err == nil {
		t.Error("expected error deleting missing feed")
	}
}

func TestNew_FailedInitReleasesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.db")
	if err := os.WriteFile(path, []byte(strings.Repeat("not a sqlite database\n", 64)), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path); err == nil {
		t.Fatal("expected error opening a non-database file")
	}
	if _, err := New(dir); err == nil {
		t.Fatal("expected error opening a directory")
	}

	// the failed handle must not keep the file busy
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove after failed open: %v", err)
	}
	s, err := New(path)
	if err != nil {
		t.Fatalf("New on fresh path: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

package memo_test

import (
	"errors"
	"testing"

	"github.com/tomster/embuild/internal/memo"
)

func TestTable(t *testing.T) {
	var (
		tbl   memo.Table[int]
		calls int
	)
	fn := func() (int, error) {
		calls++
		return calls, nil
	}

	for range 3 {
		v, err := tbl.Get("a", fn)
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 {
			t.Fatalf("expected the first value, got %d", v)
		}
	}

	if _, err := tbl.Get("b", func() (int, error) { return 0, errors.New("boom") }); err == nil {
		t.Fatal("expected error")
	}
	if v, _ := tbl.Get("b", fn); v != 2 {
		t.Fatalf("expected a failed computation to be retried, got %d", v)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", tbl.Len())
	}
}

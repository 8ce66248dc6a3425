package db

import (
	"reflect"
	"testing"
)

type testRow struct {
	id   int
	name string
}

func (r testRow) CopyValues() []any { return []any{r.id, r.name} }

func TestChannelSource(t *testing.T) {
	ch := make(chan testRow, 3)
	ch <- testRow{1, "a"}
	ch <- testRow{2, "b"}
	close(ch)

	src := NewChannelSource(ch)
	var got [][]any
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			t.Fatalf("Values: %v", err)
		}
		got = append(got, vals)
	}
	want := [][]any{{1, "a"}, {2, "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("values = %v, want %v", got, want)
	}
	if src.Rows() != 2 {
		t.Errorf("Rows = %d, want 2", src.Rows())
	}
	if src.Err() != nil {
		t.Errorf("Err = %v", src.Err())
	}
}

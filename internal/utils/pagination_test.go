package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestNewPage(t *testing.T) {
	cases := []struct {
		number, size, def, max int
		want                   Page
	}{
		{0, 0, 20, 100, Page{1, 20}},
		{-3, 5, 20, 100, Page{1, 5}},
		{3, 500, 20, 100, Page{3, 100}},
		{2, 10, 20, 0, Page{2, 10}},
		{1, 0, 0, 0, Page{1, 1}},
	}
	for _, tc := range cases {
		if got := NewPage(tc.number, tc.size, tc.def, tc.max); got != tc.want {
			t.Fatalf("NewPage(%d,%d,%d,%d) = %+v; want %+v", tc.number, tc.size, tc.def, tc.max, got, tc.want)
		}
	}
	if off := NewPage(3, 10, 10, 0).Offset(); off != 20 {
		t.Fatalf("Offset = %d", off)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.size); got != tc.want {
			t.Fatalf("TotalPages(%d,%d) = %d; want %d", tc.total, tc.size, got, tc.want)
		}
	}
}

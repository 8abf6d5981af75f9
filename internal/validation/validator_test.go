package validation

import "testing"

type sample struct {
	Email    string   `json:"email" validate:"required,email"`
	Name     string   `json:"name" validate:"notblank,max=10"`
	Rating   int      `json:"rating" validate:"gte=1,lte=5"`
	Tags     []string `json:"tags" validate:"max=2"`
	Internal string   `json:"-"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     sample
		fields []string
	}{
		{
			name: "valid",
			in:   sample{Email: "a@example.com", Name: "ok", Rating: 3},
		},
		{
			name:   "missing email and blank name",
			in:     sample{Name: "   ", Rating: 3},
			fields: []string{"email", "name"},
		},
		{
			name:   "rating out of range",
			in:     sample{Email: "a@example.com", Name: "ok", Rating: 6},
			fields: []string{"rating"},
		},
		{
			name:   "too many tags",
			in:     sample{Email: "a@example.com", Name: "ok", Rating: 1, Tags: []string{"a", "b", "c"}},
			fields: []string{"tags"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Struct(&tt.in)
			if len(errs) != len(tt.fields) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.fields))
			}
			for _, f := range tt.fields {
				if errs[f] == "" {
					t.Errorf("expected error for field %q, got %v", f, errs)
				}
			}
		})
	}
}

func TestStructUsesJSONNames(t *testing.T) {
	errs := Struct(&sample{Email: "bad", Name: "ok", Rating: 1})
	if got := errs["email"]; got != "email must be a valid email address" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMerge(t *testing.T) {
	got := Merge(nil, map[string]string{"a": "x"})
	if got["a"] != "x" {
		t.Fatalf("merge into nil: %v", got)
	}
	got = Merge(map[string]string{"a": "first"}, map[string]string{"a": "second", "b": "y"})
	if got["a"] != "first" || got["b"] != "y" {
		t.Fatalf("merge kept wrong values: %v", got)
	}
}

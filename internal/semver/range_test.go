package semver

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		exact   bool
	}{
		{"", false, false},
		{"1.0", false, false},
		{"1.0.0-alpha", false, false},
		{"[1.0]", false, true},
		{"[1.0,2.0]", false, false},
		{"(1.0,2.0)", false, false},
		{"(,1.0]", false, false},
		{"[1.0,)", false, false},
		{"[1.0, 2.0)", false, false},
		{"[abc]", true, false},
		{"[1.0", true, false},
		{"[,]", true, false},
		{"[1.0,xyz]", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				var perr *ParseError
				if !asParseError(err, &perr) {
					t.Errorf("expected *ParseError, got %T", err)
				}
				return
			}
			if r.IsExact() != tt.exact {
				t.Errorf("IsExact() = %v, want %v", r.IsExact(), tt.exact)
			}
		})
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		spec      string
		candidate string
		want      bool
	}{
		// Plain version: inclusive floor, no ceiling.
		{"1.0", "1.0", true},
		{"1.0", "0.9", false},
		{"1.0", "2.0", true},
		{"1.0", "1.0.0.1", true},

		// Exact pin.
		{"[1.0]", "1.0", true},
		{"[1.0]", "2.0", false},
		{"[1.0]", "0.9", false},

		// Half-open ceilings.
		{"(,1.0]", "1.0", true},
		{"(,1.0]", "0.1", true},
		{"(,1.0)", "1.0", false},
		{"(,1.0)", "0.9", true},

		// Closed interval.
		{"[1.0,2.0]", "1.0", true},
		{"[1.0,2.0]", "2.0", true},
		{"[1.0,2.0]", "1.5", true},
		{"[1.0,2.0]", "2.1", false},

		// Open interval.
		{"(1.0,2.0)", "1.5", true},
		{"(1.0,2.0)", "1.0", false},
		{"(1.0,2.0)", "2.0", false},

		// Mixed.
		{"[1.0,2.0)", "2.0", false},
		{"[1.0,2.0)", "1.0", true},
		{"[1.0,)", "0.9", false},
		{"[1.0,)", "99.0", true},

		// Empty spec matches anything.
		{"", "0.0.1", true},
		{"", "99.99", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec+" ~ "+tt.candidate, func(t *testing.T) {
			r := MustParseRange(tt.spec)
			got := r.Satisfies(Parse(tt.candidate))
			if got != tt.want {
				t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.spec, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestSatisfiesInvalidCandidate(t *testing.T) {
	r := MustParseRange("[1.0,2.0]")
	if r.Satisfies(Version{}) {
		t.Error("invalid version must never satisfy a range")
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"[1.0,2.0]", "[1.5,3.0]", true},
		{"[1.0,2.0)", "[2.0,3.0]", false},
		{"[1.0,2.0]", "[2.0,3.0]", true},
		{"[1.0,2.0]", "[3.0,4.0]", false},
		{"(1.0,2.0)", "(1.5,1.8)", true},
		{"[1.0]", "[1.0,2.0]", true},
		{"[1.5]", "(1.5,2.0]", false},
		{"1.0", "[1.5,2.0]", true},
		{"", "[1.0,2.0]", true},
		{"[1.0,2.0]", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+" ~ "+tt.b, func(t *testing.T) {
			a, b := MustParseRange(tt.a), MustParseRange(tt.b)
			if got := a.Overlaps(b); got != tt.want {
				t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRangeString(t *testing.T) {
	tests := []string{"1.0", "[1.0]", "[1.0,2.0)", "(,1.0]"}
	for _, s := range tests {
		r := MustParseRange(s)
		if r.String() != s {
			t.Errorf("String() = %q, want %q", r.String(), s)
		}
	}
}

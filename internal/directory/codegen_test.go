package directory

import "testing"

// TestGenerateCode_Format verifies that generated codes are exactly six
// uppercase hex digits.
func TestGenerateCode_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		if !codeRE.MatchString(code) {
			t.Fatalf("code %q does not match [0-9A-F]{6}", code)
		}
	}
}

// TestGenerateCode_Spread generates 2000 codes and checks that collisions
// stay rare. With 24 bits of entropy a few collisions over 2000 draws are
// expected (~0.1 per run), so only a pathological generator fails this.
func TestGenerateCode_Spread(t *testing.T) {
	const n = 2000
	seen := make(map[string]struct{}, n)
	dups := 0
	for i := 0; i < n; i++ {
		c := GenerateCode()
		if _, dup := seen[c]; dup {
			dups++
		}
		seen[c] = struct{}{}
	}
	if dups > 5 {
		t.Errorf("%d duplicate codes in %d draws, generator entropy looks broken", dups, n)
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ab12cd", "AB12CD", true},
		{"  AB12CD  ", "AB12CD", true},
		{"AB12CD", "AB12CD", true},
		{"AB12C", "", false},    // too short
		{"AB12CDE", "", false},  // too long
		{"GHIJKL", "", false},   // not hex
		{"", "", false},
		{"/start", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeCode(tc.in)
		if ok != tc.ok {
			t.Errorf("NormalizeCode(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package token

import "testing"

func TestEstimateFast(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t ", 0},
		{"single word", "hi", 1},
		{"word count dominates short words", "a b c d e f", 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateFast(tc.text); got != tc.want {
				t.Fatalf("EstimateFast(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestCountNonEmpty(t *testing.T) {
	if got := Count("The answer is 42."); got == 0 {
		t.Fatal("expected non-zero token count")
	}
}

func TestCountEmptyIsZero(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Fatalf("Count(\"\") = %d, want 0", got)
	}
}

package canvas

import "testing"

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, true},
		{127, 63, true},
		{128, 0, false},
		{0, 64, false},
		{-1, 0, false},
		{0, -1, false},
	}
	for _, tc := range cases {
		if got := ValidCoordinate(tc.x, tc.y); got != tc.want {
			t.Errorf("ValidCoordinate(%d, %d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestValidColor(t *testing.T) {
	valid := []string{"#FF0000", "#ff0000", "#F00", "#abc123", "#ABC"}
	for _, c := range valid {
		if !ValidColor(c) {
			t.Errorf("ValidColor(%q) = false, want true", c)
		}
	}

	invalid := []string{"", "FF0000", "#FF00", "#GG0000", "#FF00001", "red"}
	for _, c := range invalid {
		if ValidColor(c) {
			t.Errorf("ValidColor(%q) = true, want false", c)
		}
	}
}

func TestNormalizeColor(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"#ff0000", "#FF0000"},
		{"#FF0000", "#FF0000"},
		{"#f00", "#FF0000"},
		{"#abc", "#AABBCC"},
	}
	for _, tc := range cases {
		if got := NormalizeColor(tc.in); got != tc.want {
			t.Errorf("NormalizeColor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSameColor(t *testing.T) {
	if !SameColor("#FF0000", "#ff0000") {
		t.Error("case difference should compare equal")
	}
	if !SameColor("#f00", "#FF0000") {
		t.Error("short and long form should compare equal")
	}
	if SameColor("#FF0000", "#00FF00") {
		t.Error("different colors should not compare equal")
	}
}

package session

import "testing"

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{600, "10:00"},
		{599, "09:59"},
		{61, "01:01"},
		{60, "01:00"},
		{59, "00:59"},
		{9, "00:09"},
		{1, "00:01"},
		{0, "00:00"},
		{-5, "00:00"},
		{3599, "59:59"},
		{3600, "60:00"},
	}

	for _, tt := range tests {
		if got := FormatRemaining(tt.seconds); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

package bwkp_test

import (
	"testing"

	"bwkp-go/internal/bwkp"
)

func TestDecollide(t *testing.T) {
	reserved := bwkp.NewNameSet("otp", "Title")

	tests := []struct {
		name      string
		used      []string
		candidate string
		want      string
	}{
		{name: "free name", candidate: "user", want: "user"},
		{name: "used once", used: []string{"user"}, candidate: "user", want: "user-1"},
		{name: "suffix chains", used: []string{"user", "user-1"}, candidate: "user", want: "user-1-1"},
		{name: "reserved", candidate: "otp", want: "otp-1"},
		{name: "reserved and used", used: []string{"otp-1"}, candidate: "otp", want: "otp-1-1"},
		{name: "case sensitive", used: []string{"User"}, candidate: "user", want: "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used := bwkp.NewNameSet(tt.used...)
			got := bwkp.Decollide(tt.candidate, reserved, used)
			if got != tt.want {
				t.Errorf("Decollide(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
			if !used.Has(got) {
				t.Errorf("result %q not recorded in used set", got)
			}
		})
	}
}

func TestDecollide_Sequence(t *testing.T) {
	used := bwkp.NewNameSet()
	none := bwkp.NewNameSet()

	var got []string
	for range 3 {
		got = append(got, bwkp.Decollide("user", none, used))
	}

	want := []string{"user", "user-1", "user-1-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

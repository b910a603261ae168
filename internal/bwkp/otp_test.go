package bwkp_test

import (
	"testing"

	"bwkp-go/internal/bwkp"
)

func TestNormalizeOTP(t *testing.T) {
	tests := []struct {
		name  string
		seed  string
		title string
		want  string
	}{
		{
			name:  "otpauth uri passes through",
			seed:  "otpauth://totp/X?secret=ABC",
			title: "whatever",
			want:  "otpauth://totp/X?secret=ABC",
		},
		{
			name:  "canonical example",
			seed:  "JBSWY3DPEHPK3PXP",
			title: "My Login",
			want:  "otpauth://totp/My+Login?secret=jbswy3dpehpk3pxp&issuer=My+Login&algorithm=SHA1&digits=6&period=30",
		},
		{
			name:  "bare seed",
			seed:  "JBSW Y3DP",
			title: "My Site",
			want:  "otpauth://totp/My+Site?secret=jbswy3dp&issuer=My+Site&algorithm=SHA1&digits=6&period=30",
		},
		{
			name:  "whitespace is stripped",
			seed:  " abcd\tefgh\n",
			title: "x",
			want:  "otpauth://totp/x?secret=abcdefgh&issuer=x&algorithm=SHA1&digits=6&period=30",
		},
		{
			name:  "title is escaped",
			seed:  "AAAA",
			title: "a&b/c",
			want:  "otpauth://totp/a%26b%2Fc?secret=aaaa&issuer=a%26b%2Fc&algorithm=SHA1&digits=6&period=30",
		},
		{
			name:  "steam uri passes through",
			seed:  "otpauth://steam/x?secret=ABC",
			title: "Steam",
			want:  "otpauth://steam/x?secret=ABC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bwkp.NormalizeOTP(tt.seed, tt.title); got != tt.want {
				t.Errorf("NormalizeOTP(%q, %q) = %q, want %q", tt.seed, tt.title, got, tt.want)
			}
		})
	}
}

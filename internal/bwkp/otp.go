package bwkp

import (
	"fmt"
	"net/url"
	"strings"
)

const otpScheme = "otpauth://"

// NormalizeOTP turns a TOTP seed or URI into an otpauth:// URI. Bare seeds are
// assumed to be base32 secrets and are not validated.
func NormalizeOTP(rawSeed, itemTitle string) string {
	if strings.HasPrefix(rawSeed, otpScheme) {
		return rawSeed
	}
	secret := strings.ToLower(strings.Join(strings.Fields(rawSeed), ""))
	label := url.QueryEscape(itemTitle)
	return fmt.Sprintf("%stotp/%s?secret=%s&issuer=%s&algorithm=SHA1&digits=6&period=30",
		otpScheme, label, secret, label)
}

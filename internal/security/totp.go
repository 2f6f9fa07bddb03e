package security

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// totpIssuer is the issuer label shown in authenticator apps.
const totpIssuer = "OurStreet"

// GenerateTOTPSecret creates a new TOTP secret for an admin account and
// returns the secret along with its otpauth enrollment URL.
func GenerateTOTPSecret(accountEmail string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountEmail,
	})
	if errGenerate != nil {
		return "", "", fmt.Errorf("security: generate totp secret: %w", errGenerate)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether a code matches the stored secret.
func ValidateTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

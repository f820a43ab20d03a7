package connections

import (
	"encoding/json"
	"strings"

	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
)

// StripeCredentials is the payload for a card-processor connection.
type StripeCredentials struct {
	APIKey string `json:"api_key" validate:"required"`
}

// AppStoreCredentials is the payload for an App Store Connect connection.
type AppStoreCredentials struct {
	IssuerID     string `json:"issuer_id" validate:"required"`
	KeyID        string `json:"key_id" validate:"required"`
	VendorNumber string `json:"vendor_number" validate:"required"`
	PrivateKey   string `json:"private_key" validate:"required"`
}

// GooglePlayCredentials is the payload for a Play Console bucket
// connection: raw service-account JSON plus the export bucket.
type GooglePlayCredentials struct {
	ServiceAccountJSON string `json:"service_account_json" validate:"required"`
	Bucket             string `json:"bucket" validate:"required"`
	Prefix             string `json:"prefix"`
}

// ValidateCredentials checks that a platform's opaque credential payload
// carries every required field. The payload stays opaque to the rest of
// the system; only the platform integrations decode it again.
func ValidateCredentials(platform enums.Platform, payload json.RawMessage) error {
	if len(payload) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credentials payload is required")
	}

	switch platform {
	case enums.PlatformStripe:
		var creds StripeCredentials
		if err := json.Unmarshal(payload, &creds); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed stripe credentials")
		}
		if strings.TrimSpace(creds.APIKey) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "stripe credentials require api_key")
		}
	case enums.PlatformAppStore:
		var creds AppStoreCredentials
		if err := json.Unmarshal(payload, &creds); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed app store credentials")
		}
		var missing []string
		if strings.TrimSpace(creds.IssuerID) == "" {
			missing = append(missing, "issuer_id")
		}
		if strings.TrimSpace(creds.KeyID) == "" {
			missing = append(missing, "key_id")
		}
		if strings.TrimSpace(creds.VendorNumber) == "" {
			missing = append(missing, "vendor_number")
		}
		if strings.TrimSpace(creds.PrivateKey) == "" {
			missing = append(missing, "private_key")
		}
		if len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "app store credentials require "+strings.Join(missing, ", "))
		}
	case enums.PlatformGooglePlay:
		var creds GooglePlayCredentials
		if err := json.Unmarshal(payload, &creds); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed google play credentials")
		}
		if strings.TrimSpace(creds.ServiceAccountJSON) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "google play credentials require service_account_json")
		}
		if strings.TrimSpace(creds.Bucket) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "google play credentials require bucket")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown platform")
	}
	return nil
}

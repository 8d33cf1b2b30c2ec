package domain

import "errors"

// Sentinel errors for the bundles domain. Handlers map these onto HTTP
// statuses; repositories translate driver errors into them.
var (
	// ErrInvalidPhone is returned when a user-entered phone number cannot be
	// normalized into the canonical MSISDN format.
	ErrInvalidPhone = errors.New("invalid phone number format")

	// ErrBundleNotFound covers both unknown and deactivated bundles.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrDailyLimitReached signals the one-purchase-per-day-per-line policy.
	ErrDailyLimitReached = errors.New("daily purchase limit reached for this line")

	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateTransactionID means the generated transaction id collided
	// with an existing row; the caller retries with a fresh id.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")

	// ErrDuplicateProviderReference means the gateway handed back a reference
	// already attached to another transaction.
	ErrDuplicateProviderReference = errors.New("duplicate provider reference")

	// ErrMalformedCallbackPayload is returned when a provider callback body
	// is not a JSON object at all. Anything decodable is handled through
	// field fallbacks instead.
	ErrMalformedCallbackPayload = errors.New("malformed callback payload")

	// ErrNoCallbackIdentifier is returned when a provider callback carries
	// neither a provider reference nor a client reference.
	ErrNoCallbackIdentifier = errors.New("callback carries no usable transaction identifier")

	// ErrGatewayFault wraps classified gateway failures surfaced to the
	// client with a manual-payment suggestion.
	ErrGatewayFault = errors.New("payment gateway fault")
)

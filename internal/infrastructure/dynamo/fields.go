package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldIdentityID = "identity_id"
	fieldEmail      = "email"
	fieldOTP        = "otp"
	fieldOTPExpiry  = "otp_expiry"
	fieldIsVerified = "is_verified"
	fieldVerifiedAt = "verified_at"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"

	emailIndex = "email-index"
)

package domain

import "time"

// VerificationRecord is the local verification state of one provider identity.
// PK: identity_id. GSI: email-index.
//
// OTP and OTPExpiry are set and cleared together. IsVerified only ever moves
// from false to true; once it is true both OTP fields stay nil.
type VerificationRecord struct {
	IdentityID string     `json:"id" dynamodbav:"identity_id"`
	Email      string     `json:"email" dynamodbav:"email"`
	OTP        *string    `json:"-" dynamodbav:"otp,omitempty"`
	OTPExpiry  *time.Time `json:"-" dynamodbav:"otp_expiry,omitempty"`
	IsVerified bool       `json:"is_verified" dynamodbav:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// Pending reports whether the record carries an OTP awaiting verification.
func (r *VerificationRecord) Pending() bool {
	return !r.IsVerified && r.OTP != nil && r.OTPExpiry != nil
}

// ExpiredAt reports whether the pending OTP is no longer usable at now.
// An expiry equal to now counts as expired.
func (r *VerificationRecord) ExpiredAt(now time.Time) bool {
	return r.OTPExpiry == nil || !now.Before(*r.OTPExpiry)
}

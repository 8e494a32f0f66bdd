package dynamo

// DynamoDB attribute names used in keys, indexes and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID           = "user_id"
	fieldUsername         = "username"
	fieldEmail            = "email"
	fieldPasswordHash     = "password_hash"
	fieldTwoFactorEnabled = "two_factor_enabled"
	fieldUpdatedAt        = "updated_at"

	fieldVerificationKey  = "key"
	fieldVerificationType = "type"
	fieldCode             = "code"
	fieldAttempts         = "attempts"
	fieldMaxAttempts      = "max_attempts"
	fieldIssuedAt         = "issued_at"
	fieldExpiresAt        = "expires_at"
	fieldTTL              = "ttl"

	indexUsername = "username-index"
	indexEmail    = "email-index"
)

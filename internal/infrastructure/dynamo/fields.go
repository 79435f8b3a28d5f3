package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
const (
	fieldUserID    = "user_id"
	fieldPhone     = "phone"
	fieldName      = "name"
	fieldEmail     = "email"
	fieldLanguage  = "language"
	fieldIsActive  = "is_active"
	fieldUpdatedAt = "updated_at"
	fieldOwnerID   = "owner_id"

	fieldCodeHash = "code_hash"
	fieldAttempts = "attempts"
	fieldTTL      = "ttl"
)

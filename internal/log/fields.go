package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"

	FieldBridge   = "bridge"
	FieldVerb     = "verb"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldOutcome  = "outcome"
	FieldCode     = "code"
	FieldGroupID  = "group_id"
	FieldUsername = "username"
	FieldCount    = "count"
	FieldDuration = "duration"
)

// Redact keeps a short prefix of a secret such as a bridge username so log
// lines stay correlatable without carrying the credential.
func Redact(secret string) string {
	const keep = 4
	switch {
	case secret == "":
		return ""
	case len(secret) <= keep*2:
		return "***"
	default:
		return secret[:keep] + "***"
	}
}

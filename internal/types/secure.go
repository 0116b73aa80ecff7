package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values. String() and MarshalJSON() return a
// redacted placeholder, so secrets never leak through fmt functions, JSON
// config dumps, or structured log entries.
//
// Call Unmask() only where the raw value is genuinely needed, such as an
// HTTP Authorization header or a database connection string.
type SecretString string

// String returns a redacted placeholder instead of the raw value. It is
// invoked by fmt.Sprintf, fmt.Println, and anything else that honors the
// fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

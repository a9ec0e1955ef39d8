package logger

// RedactToken masks a credential for safe logging, keeping just enough of
// the prefix to correlate with the vendor console.
// "ya29.a0AfH6SMBx7" → "ya29***"
// Short values (≤4 chars) are fully masked.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}

package logger

import "strings"

// RedactID masks a customer identifier for safe logging.
// "CUST-12345" → "CU***45"
// Identifiers of 4 characters or fewer are fully masked: "A12" → "***"
func RedactID(id string) string {
	id = strings.TrimSpace(id)
	if strings.Contains(id, "@") {
		return RedactEmail(id)
	}
	if len(id) <= 4 {
		return "***"
	}
	return id[:2] + "***" + id[len(id)-2:]
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

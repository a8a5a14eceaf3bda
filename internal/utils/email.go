package utils

import (
	"strings"
)

// ExtractEmailAddress returns the bare address of "Name <user@host>".
func ExtractEmailAddress(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "<") && strings.Contains(value, ">") {
		startIdx := strings.LastIndex(value, "<") + 1
		endIdx := strings.LastIndex(value, ">")
		if startIdx > 0 && endIdx > startIdx {
			return strings.TrimSpace(value[startIdx:endIdx])
		}
	}
	return value
}

func ExtractDomainFromEmail(email string) string {
	email = ExtractEmailAddress(email)
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

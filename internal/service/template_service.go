// internal/service/template_service.go
package service

import (
	"strings"
)

// RenderTemplate fills {{key}} placeholders. Unknown placeholders are left as-is.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}

// FirstName is the first word of a contact name, or "there" when unknown.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

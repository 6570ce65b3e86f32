package generation

import (
	"encoding/json"
	"regexp"
	"strings"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
)

const MsgParseFailed = "Failed to parse AI response. Please try again."

var fenceRe = regexp.MustCompile("```json\\n?|\\n?```")

// StripCodeFences removes markdown ```json fences around a model answer.
func StripCodeFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// DecodeJSON strips fences and unmarshals text into v. Anything that is not
// valid JSON for v is a malformed-output error the caller may retry.
func DecodeJSON(text string, v any) error {
	cleaned := StripCodeFences(text)
	if cleaned == "" {
		return appErrors.Malformed("decode ai response", MsgParseFailed, nil)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return appErrors.Malformed("decode ai response", MsgParseFailed, err)
	}
	return nil
}

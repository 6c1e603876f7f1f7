// Package template personalizes message content per recipient.
//
// The placeholder set is closed: {first_name}, {last_name}, {phone} and
// {participant_type}. An unknown or malformed placeholder fails that one
// recipient, never the whole dispatch.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/munnorthwest/conference-messaging/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)

// Personalize substitutes every placeholder in content with the matching
// participant field.
func Personalize(content string, p model.Participant) (string, error) {
	fields := map[string]string{
		"first_name":       p.FirstName,
		"last_name":        p.LastName,
		"phone":            p.Phone,
		"participant_type": p.ParticipantType,
	}

	var unknown []string
	out := placeholderRe.ReplaceAllStringFunc(content, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := fields[name]
		if !ok {
			unknown = append(unknown, name)
			return m
		}
		return v
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown placeholder {%s}", unknown[0])
	}

	// A brace that survived substitution means an unbalanced placeholder.
	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("malformed placeholder in content")
	}
	return out, nil
}

// Package resolve expands recipient selectors into concrete participants.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/munnorthwest/conference-messaging/internal/model"
	"github.com/munnorthwest/conference-messaging/internal/repo"
)

// ErrNoRecipients is returned when a selector set matches nobody. The caller
// decides the user-facing behavior; no message is created.
var ErrNoRecipients = errors.New("no recipients found")

type Resolver struct {
	participants repo.ParticipantRepository
}

func NewResolver(participants repo.ParticipantRepository) *Resolver {
	return &Resolver{participants: participants}
}

// Resolve partitions selectors into category tags and individual
// "First Last" names, expands both against the conference roster and returns
// the union deduplicated by participant ID. Individual names resolve against
// Secretariat members only.
func (r *Resolver) Resolve(ctx context.Context, conferenceID int64, selectors []string) ([]model.Participant, error) {
	var tags []string
	var names []string
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if model.ValidParticipantType(sel) {
			tags = append(tags, sel)
		} else {
			names = append(names, sel)
		}
	}

	seen := make(map[int64]bool)
	var out []model.Participant

	if len(tags) > 0 {
		byType, err := r.participants.ListByTypes(ctx, conferenceID, tags)
		if err != nil {
			return nil, fmt.Errorf("resolve by type: %w", err)
		}
		for _, p := range byType {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}

	for _, name := range names {
		first, last, ok := splitName(name)
		if !ok {
			continue
		}
		matches, err := r.participants.FindSecretariatByName(ctx, conferenceID, first, last)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", name, err)
		}
		for _, p := range matches {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRecipients
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// splitName splits on the first whitespace: "Jane Doe" -> ("Jane", "Doe").
func splitName(name string) (first, last string, ok bool) {
	first, last, ok = strings.Cut(name, " ")
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if !ok || first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}

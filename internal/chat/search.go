package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tOgg1/discuss/internal/models"
)

const defaultSearchLimit = 20

// unaccent folds s to lower case without diacritics.
func unaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// MentionPartnerSuggestions returns the partners to suggest for @-mentions
// in a channel, grouped by relevance. Without a channel it returns the
// session-wide suggestions. Channel listeners are fetched once.
func (m *Manager) MentionPartnerSuggestions(ctx context.Context, id models.ChannelID) ([][]models.Partner, error) {
	m.mu.Lock()
	if id == "" {
		out := slices.Clone(m.mentionSuggestions)
		m.mu.Unlock()
		return out, nil
	}
	ch := m.byID[id]
	if ch == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	if ch.Listeners != nil {
		out := [][]models.Partner{slices.Clone(ch.Listeners)}
		m.mu.Unlock()
		return out, nil
	}
	uuid := ch.UUID
	m.mu.Unlock()

	members, _, err := m.listeners.Do(ctx, string(id), func(ctx context.Context) ([]models.Partner, error) {
		members, err := m.backend.FetchListeners(ctx, uuid)
		if err != nil {
			return nil, fmt.Errorf("fetch listeners of %s: %w", id, err)
		}
		if members == nil {
			members = []models.Partner{}
		}
		m.mu.Lock()
		if ch := m.byID[id]; ch != nil {
			ch.Listeners = members
		}
		m.mu.Unlock()
		return members, nil
	})
	if err != nil {
		return nil, err
	}
	return [][]models.Partner{slices.Clone(members)}, nil
}

// SearchPartner finds partners whose name contains term, ignoring case
// and accents. Known suggestions are searched first; the server is asked
// only when none match. Results are sorted by name.
func (m *Manager) SearchPartner(ctx context.Context, term string, limit int) ([]models.Partner, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	needle := unaccent(strings.TrimSpace(term))

	m.mu.Lock()
	var found []models.Partner
	for _, group := range m.mentionSuggestions {
		if len(found) >= limit {
			break
		}
		for _, p := range group {
			if p.ID == m.opts.PartnerID || !strings.Contains(unaccent(string(p.Name)), needle) {
				continue
			}
			found = append(found, p)
		}
	}
	m.mu.Unlock()
	if len(found) > limit {
		found = found[:limit]
	}

	if len(found) == 0 {
		var err error
		found, err = m.backend.SearchPartner(ctx, term, limit)
		if err != nil {
			return nil, fmt.Errorf("search partners %q: %w", term, err)
		}
	}
	slices.SortStableFunc(found, func(a, b models.Partner) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return found, nil
}

package chat

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/tOgg1/discuss/internal/models"
)

// Query selects the messages GetMessages returns. The first selector set
// wins: ChannelID, then IDs, then Model and ResID.
type Query struct {
	ChannelID models.ChannelID
	// Domain filters the channel view.
	Domain models.Domain
	// LoadMore fetches the page preceding the oldest cached message.
	LoadMore bool

	IDs        []models.MessageID
	ForceFetch bool

	Model string
	ResID int64
}

// GetMessages returns messages for a channel view, a set of ids or a
// document thread, fetching from the server what is not cached.
func (m *Manager) GetMessages(ctx context.Context, q Query) ([]*models.Message, error) {
	switch {
	case q.ChannelID != "" && q.LoadMore:
		return m.fetchFromChannel(ctx, q.ChannelID, q.Domain, true)
	case q.ChannelID != "":
		m.mu.Lock()
		ch := m.byID[q.ChannelID]
		if ch == nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, q.ChannelID)
		}
		if cache, ok := ch.Cache[q.Domain.Key()]; ok && cache.Loaded {
			out := slices.Clone(cache.Messages)
			m.mu.Unlock()
			return out, nil
		}
		m.mu.Unlock()
		return m.fetchFromChannel(ctx, q.ChannelID, q.Domain, false)
	case len(q.IDs) > 0:
		msgs, err := m.fetchDocumentMessages(ctx, q.IDs, q.ForceFetch)
		if err != nil {
			return nil, err
		}
		if err := m.MarkAsRead(ctx, q.IDs); err != nil {
			m.logger.Warn().Err(err).Int("messages", len(q.IDs)).Msg("mark as read failed")
		}
		return msgs, nil
	case q.Model != "" && q.ResID != 0:
		return m.fetchDocumentThread(ctx, q.Model, q.ResID)
	default:
		return nil, ErrEmptyQuery
	}
}

// fetchFromChannel loads one page of a channel view. Concurrent loads of
// the same page share one request.
func (m *Manager) fetchFromChannel(ctx context.Context, id models.ChannelID, domain models.Domain, loadMore bool) ([]*models.Message, error) {
	m.mu.Lock()
	ch := m.byID[id]
	if ch == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	full := baseDomain(id)
	full = append(full, domain...)
	key := string(id) + "|" + domain.Key()
	if loadMore {
		if cached := channelCache(ch, domain).Messages; len(cached) > 0 {
			oldest := cached[0].ID
			full = append(models.Domain{{Field: "id", Operator: "<", Value: float64(oldest)}}, full...)
			key += "|<" + oldest.String()
		}
	}
	m.mu.Unlock()

	msgs, _, err := m.fetches.Do(ctx, key, func(ctx context.Context) ([]*models.Message, error) {
		data, err := m.backend.FetchMessages(ctx, full, m.opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch channel %s: %w", id, err)
		}
		return m.mergeChannelPage(id, domain, data), nil
	})
	return slices.Clone(msgs), err
}

// mergeChannelPage stores a fetched page and returns the view it landed
// in. A channel removed while the page was in flight keeps no view; the
// messages are still stored.
func (m *Manager) mergeChannelPage(id models.ChannelID, domain models.Domain, data []models.MessageData) []*models.Message {
	m.lock()
	defer m.unlock()

	ch := m.byID[id]
	if ch != nil {
		cache := channelCache(ch, domain)
		if !cache.AllHistoryLoaded {
			cache.AllHistoryLoaded = len(data) < m.opts.PageSize
		}
		cache.Loaded = true
	}

	added := make([]*models.Message, 0, len(data))
	for i := range data {
		added = append(added, m.addMessage(&data[i], addOptions{channelID: id, domain: domain, silent: true}))
	}
	if ch == nil {
		return added
	}
	return slices.Clone(channelCache(ch, domain).Messages)
}

func baseDomain(id models.ChannelID) models.Domain {
	switch id {
	case models.InboxChannelID:
		return models.Domain{{Field: "needaction", Operator: "=", Value: true}}
	case models.StarredChannelID:
		return models.Domain{{Field: "starred", Operator: "=", Value: true}}
	}
	var value any = string(id)
	if n, ok := id.Int(); ok {
		value = n
	}
	return models.Domain{{Field: "channel_ids", Operator: "in", Value: value}}
}

// fetchDocumentMessages returns the messages with ids, loading the missing
// ones when one of the first page is unknown or force is set.
func (m *Manager) fetchDocumentMessages(ctx context.Context, ids []models.MessageID, force bool) ([]*models.Message, error) {
	m.mu.Lock()
	var loaded []*models.Message
	var missing []models.MessageID
	for _, id := range ids {
		if msg := m.findMessage(id); msg != nil {
			loaded = append(loaded, msg)
		} else {
			missing = append(missing, id)
		}
	}
	m.mu.Unlock()

	needFetch := force
	if !needFetch {
		head := ids[:min(len(ids), m.opts.PageSize)]
		for _, id := range head {
			if slices.Contains(missing, id) {
				needFetch = true
				break
			}
		}
	}
	if !needFetch || len(missing) == 0 {
		sortMessages(loaded)
		return loaded, nil
	}

	toLoad := missing[:min(len(missing), m.opts.PageSize)]
	data, err := m.backend.MessageFormat(ctx, toLoad)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	m.lock()
	for i := range data {
		loaded = append(loaded, m.addMessage(&data[i], addOptions{silent: true}))
	}
	m.unlock()

	loaded = slices.CompactFunc(sortMessages(loaded), func(a, b *models.Message) bool { return a == b })
	return loaded, nil
}

// fetchDocumentThread loads the latest messages posted on a record.
func (m *Manager) fetchDocumentThread(ctx context.Context, model string, resID int64) ([]*models.Message, error) {
	domain := models.Domain{
		{Field: "model", Operator: "=", Value: model},
		{Field: "res_id", Operator: "=", Value: resID},
	}
	data, err := m.backend.FetchMessages(ctx, domain, m.opts.ChatterPageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch %s,%s thread: %w", model, strconv.FormatInt(resID, 10), err)
	}

	m.lock()
	defer m.unlock()
	out := make([]*models.Message, 0, len(data))
	for i := range data {
		out = append(out, m.addMessage(&data[i], addOptions{}))
	}
	return sortMessages(out), nil
}

func sortMessages(msgs []*models.Message) []*models.Message {
	slices.SortFunc(msgs, func(a, b *models.Message) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return msgs
}

// LastSeenMessage returns the message the session last saw in a channel,
// advanced past the session's own and system messages that follow it.
func (m *Manager) LastSeenMessage(id models.ChannelID) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.byID[id]
	if ch == nil || ch.LastSeenMessageID == 0 {
		return nil
	}
	msgs := ch.DefaultCache().Messages
	idx := slices.IndexFunc(msgs, func(msg *models.Message) bool { return msg.ID == ch.LastSeenMessageID })
	if idx < 0 {
		return nil
	}
	for idx+1 < len(msgs) && (msgs[idx+1].IsAuthor || msgs[idx+1].IsSystemNotification) {
		idx++
	}
	return msgs[idx]
}

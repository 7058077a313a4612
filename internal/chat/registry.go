package chat

import (
	"slices"
	"sort"
	"strings"

	"github.com/tOgg1/discuss/internal/models"
)

// channelOptions qualifies how a channel is registered.
type channelOptions struct {
	silent             bool
	noAutoswitch       bool
	hidden             bool
	displayNeedactions bool
}

// channelCache returns the view of ch filtered by domain, creating it on
// first use.
func channelCache(ch *models.Channel, domain models.Domain) *models.ChannelCache {
	key := domain.Key()
	if ch.Cache == nil {
		ch.Cache = models.NewChannelCacheMap()
	}
	cache, ok := ch.Cache[key]
	if !ok {
		cache = &models.ChannelCache{}
		ch.Cache[key] = cache
	}
	return cache
}

// addChannel registers a channel. Registering a known id only syncs its
// fold state. Caller holds mu.
func (m *Manager) addChannel(info *models.ChannelInfo, opts channelOptions) *models.Channel {
	if ch := m.byID[info.ID]; ch != nil {
		folded := info.State == "folded"
		if ch.IsFolded != folded {
			ch.IsFolded = folded
			m.emit(&models.Event{Type: models.EventTypeChannelToggleFold, Channel: ch})
		}
		return ch
	}

	ch := m.makeChannel(info, opts)
	m.channels = append(m.channels, ch)
	m.byID[ch.ID] = ch
	if info.LastMessage != nil {
		ch.LastMessage = m.addMessage(info.LastMessage, addOptions{})
	}
	m.sortChannels()

	if !opts.silent {
		m.emit(&models.Event{Type: models.EventTypeNewChannel, Channel: ch})
	}
	if ch.IsDetached {
		m.emit(&models.Event{Type: models.EventTypeOpenChat, Channel: ch})
	}
	return ch
}

func (m *Manager) makeChannel(info *models.ChannelInfo, opts channelOptions) *models.Channel {
	kind := models.ChannelType(info.Type)
	if kind == "" {
		kind = models.ChannelType(info.ChannelType)
	}
	ch := &models.Channel{
		ID:                     info.ID,
		Name:                   string(info.Name),
		ServerType:             string(info.ChannelType),
		Type:                   kind,
		UUID:                   string(info.UUID),
		IsDetached:             info.IsMinimized,
		IsFolded:               info.State == "folded",
		Autoswitch:             !opts.noAutoswitch,
		Hidden:                 opts.hidden,
		DisplayNeedactions:     opts.displayNeedactions,
		MassMailing:            info.MassMailing,
		GroupBasedSubscription: info.GroupBasedSubscription,
		NeedactionCounter:      info.MessageNeedactionCounter,
		LastSeenMessageID:      info.SeenMessageID,
		LastMessageDate:        info.LastMessageDate.Time,
		Cache:                  models.NewChannelCacheMap(),
	}

	if kind == "channel" {
		ch.Type = models.ChannelTypePublic
		if info.Public == "private" {
			ch.Type = models.ChannelTypePrivate
		}
	}
	if len(info.DirectPartner) > 0 {
		partner := info.DirectPartner[0]
		ch.Type = models.ChannelTypeDM
		ch.Name = string(partner.Name)
		ch.DirectPartnerID = partner.ID
		ch.Status = string(partner.IMStatus)
		if !slices.Contains(m.pinnedDMPartners, partner.ID) {
			m.pinnedDMPartners = append(m.pinnedDMPartners, partner.ID)
			m.syncPresence()
		}
	} else if info.AnonymousName != nil {
		ch.Name = string(*info.AnonymousName)
	}
	ch.IsChat = ch.Type.IsChat()

	if info.MessageUnreadCounter > 0 {
		m.updateChannelUnreadCounter(ch, info.MessageUnreadCounter)
	}
	return ch
}

// sortChannels orders the registry by case-insensitive name, mailbox views
// first.
func (m *Manager) sortChannels() {
	key := func(ch *models.Channel) string {
		if ch.Type == models.ChannelTypeStatic {
			return ""
		}
		return strings.ToLower(ch.Name)
	}
	sort.SliceStable(m.channels, func(i, j int) bool {
		return key(m.channels[i]) < key(m.channels[j])
	})
}

// removeChannel unregisters ch. Caller holds mu.
func (m *Manager) removeChannel(ch *models.Channel) {
	if ch.UnreadCounter > 0 {
		m.updateChannelUnreadCounter(ch, 0)
	}
	if ch.Type == models.ChannelTypeDM {
		m.pinnedDMPartners = slices.DeleteFunc(m.pinnedDMPartners, func(id int64) bool {
			return id == ch.DirectPartnerID
		})
		m.syncPresence()
	}
	m.channels = slices.DeleteFunc(m.channels, func(c *models.Channel) bool { return c == ch })
	delete(m.byID, ch.ID)
	m.joins.Forget(string(ch.ID))
	m.seen.Forget(ch.ID)
}

// invalidateCaches drops every filtered view of the given channels.
func (m *Manager) invalidateCaches(ids []models.ChannelID) {
	for _, id := range ids {
		ch := m.byID[id]
		if ch == nil {
			continue
		}
		def := ch.DefaultCache()
		ch.Cache = map[string]*models.ChannelCache{models.EmptyDomainKey: def}
	}
}

// syncPresence pushes the pinned DM partners to the presence subscriber
// once mu is released.
func (m *Manager) syncPresence() {
	if m.opts.Presence == nil {
		return
	}
	ids := slices.Clone(m.pinnedDMPartners)
	m.after(func() {
		m.opts.Presence.UpdatePresence(ids)
	})
}

func (m *Manager) dmFromPartner(partnerID int64) *models.Channel {
	for _, ch := range m.channels {
		if ch.Type == models.ChannelTypeDM && ch.DirectPartnerID == partnerID {
			return ch
		}
	}
	return nil
}

// Channel returns the registered channel with id, or nil.
func (m *Manager) Channel(id models.ChannelID) *models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// Channels returns the registered channels in display order.
func (m *Manager) Channels() []*models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.channels)
}

// DMFromPartner returns the direct conversation with a partner, or nil.
func (m *Manager) DMFromPartner(partnerID int64) *models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dmFromPartner(partnerID)
}

// PinnedDMPartners returns the partners of the open direct conversations.
func (m *Manager) PinnedDMPartners() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.pinnedDMPartners)
}

// AllHistoryLoaded reports whether the view of a channel filtered by
// domain holds the channel's whole history.
func (m *Manager) AllHistoryLoaded(id models.ChannelID, domain models.Domain) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.byID[id]
	if ch == nil {
		return false
	}
	cache, ok := ch.Cache[domain.Key()]
	return ok && cache.AllHistoryLoaded
}

package models

import (
	"sort"
	"time"
)

// ChannelType is the client-side kind of a channel.
type ChannelType string

const (
	ChannelTypeStatic  ChannelType = "static"
	ChannelTypePublic  ChannelType = "public"
	ChannelTypePrivate ChannelType = "private"
	ChannelTypeDM      ChannelType = "dm"
)

// IsChat reports whether channels of this type are conversations rather
// than public/private/static channels.
func (t ChannelType) IsChat() bool {
	switch t {
	case ChannelTypePublic, ChannelTypePrivate, ChannelTypeStatic:
		return false
	default:
		return true
	}
}

// ChannelCache is one filtered view over a channel's messages.
type ChannelCache struct {
	Loaded           bool
	AllHistoryLoaded bool
	// Messages is sorted by id ascending; entries are references into the
	// message store.
	Messages []*Message
}

// Insert places msg at its ordered position unless it is already present.
func (c *ChannelCache) Insert(msg *Message) {
	idx := sort.Search(len(c.Messages), func(i int) bool { return c.Messages[i].ID >= msg.ID })
	if idx < len(c.Messages) && c.Messages[idx] == msg {
		return
	}
	c.Messages = append(c.Messages, nil)
	copy(c.Messages[idx+1:], c.Messages[idx:])
	c.Messages[idx] = msg
}

// Remove drops msg from the view.
func (c *ChannelCache) Remove(msg *Message) {
	for i, m := range c.Messages {
		if m == msg {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return
		}
	}
}

// Channel is a conversation known to the client.
type Channel struct {
	ID                     ChannelID
	Name                   string
	ServerType             string
	Type                   ChannelType
	UUID                   string
	IsChat                 bool
	IsDetached             bool
	IsFolded               bool
	Autoswitch             bool
	Hidden                 bool
	DisplayNeedactions     bool
	MassMailing            bool
	GroupBasedSubscription bool
	NeedactionCounter      int
	UnreadCounter          int
	LastSeenMessageID      MessageID
	LastMessage            *Message
	LastMessageDate        time.Time
	DirectPartnerID        int64
	Status                 string

	// Cache maps a serialized domain to its view. The EmptyDomainKey entry
	// always exists.
	Cache map[string]*ChannelCache

	Listeners []Partner
}

// NewChannelCacheMap returns a cache map holding only the unfiltered view.
func NewChannelCacheMap() map[string]*ChannelCache {
	return map[string]*ChannelCache{EmptyDomainKey: {}}
}

// DefaultCache returns the unfiltered view.
func (c *Channel) DefaultCache() *ChannelCache {
	cache, ok := c.Cache[EmptyDomainKey]
	if !ok {
		cache = &ChannelCache{}
		if c.Cache == nil {
			c.Cache = make(map[string]*ChannelCache)
		}
		c.Cache[EmptyDomainKey] = cache
	}
	return cache
}

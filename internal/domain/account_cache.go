package domain

import (
	"sync"
	"time"
)

// AccountCache holds lookups derived from an account's server metadata.
// It is populated on first use and lives for the process lifetime.
type AccountCache struct {
	mu                   sync.RWMutex
	statusColors         map[string]string
	customFieldsIDToName map[string]string
	customFieldsNameToID map[string]string
	customFieldsType     map[string]string
	refreshedAt          time.Time
}

func NewAccountCache() *AccountCache {
	return &AccountCache{}
}

type CustomField struct {
	ID   string
	Name string
	Type string
}

// AccountCacheSnapshot is a point-in-time copy safe to hand out.
type AccountCacheSnapshot struct {
	StatusColors         map[string]string
	CustomFieldsIDToName map[string]string
	CustomFieldsNameToID map[string]string
	CustomFieldsType     map[string]string
	RefreshedAt          time.Time
}

func (c *AccountCache) Replace(statusColors map[string]string, fields []CustomField, refreshedAt time.Time) {
	idToName := make(map[string]string, len(fields))
	nameToID := make(map[string]string, len(fields))
	types := make(map[string]string, len(fields))
	for _, field := range fields {
		idToName[field.ID] = field.Name
		nameToID[field.Name] = field.ID
		if field.Type != "" {
			types[field.ID] = field.Type
		}
	}

	colors := make(map[string]string, len(statusColors))
	for status, color := range statusColors {
		colors[status] = color
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusColors = colors
	c.customFieldsIDToName = idToName
	c.customFieldsNameToID = nameToID
	c.customFieldsType = types
	c.refreshedAt = refreshedAt
}

func (c *AccountCache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.refreshedAt.IsZero()
}

func (c *AccountCache) StatusColor(status string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	color, ok := c.statusColors[status]
	return color, ok
}

func (c *AccountCache) CustomFieldID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.customFieldsNameToID[name]
	return id, ok
}

func (c *AccountCache) CustomFieldName(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.customFieldsIDToName[id]
	return name, ok
}

func (c *AccountCache) Snapshot() AccountCacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return AccountCacheSnapshot{
		StatusColors:         copyMap(c.statusColors),
		CustomFieldsIDToName: copyMap(c.customFieldsIDToName),
		CustomFieldsNameToID: copyMap(c.customFieldsNameToID),
		CustomFieldsType:     copyMap(c.customFieldsType),
		RefreshedAt:          c.refreshedAt,
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

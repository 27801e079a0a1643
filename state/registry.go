package state

import "airsync/models"

// Registry is the ordered notification list, newest first.
//
// It is not safe for concurrent use on its own; Store serializes access.
type Registry struct {
	items []models.Notification
}

// Prepend inserts n at the front. Entries sharing a NID are allowed.
func (r *Registry) Prepend(n models.Notification) {
	r.items = append(r.items, models.Notification{})
	copy(r.items[1:], r.items)
	r.items[0] = n
}

// RemoveByNID drops every entry carrying nid and returns how many were removed.
func (r *Registry) RemoveByNID(nid string) int {
	return r.removeWhere(func(n models.Notification) bool { return n.NID == nid })
}

// RemoveByLocalID drops the entry with the given local id.
func (r *Registry) RemoveByLocalID(id string) (models.Notification, bool) {
	for i, n := range r.items {
		if n.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return n, true
		}
	}
	return models.Notification{}, false
}

// FindByNID returns the newest entry carrying nid.
func (r *Registry) FindByNID(nid string) (models.Notification, bool) {
	for _, n := range r.items {
		if n.NID == nid {
			return n, true
		}
	}
	return models.Notification{}, false
}

// Clear empties the registry and returns the number of dropped entries.
func (r *Registry) Clear() int {
	n := len(r.items)
	r.items = nil
	return n
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.items)
}

// Snapshot returns a copy in display order.
func (r *Registry) Snapshot() []models.Notification {
	out := make([]models.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Registry) removeWhere(match func(models.Notification) bool) int {
	kept := r.items[:0]
	removed := 0
	for _, n := range r.items {
		if match(n) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(r.items); i++ {
		r.items[i] = models.Notification{}
	}
	r.items = kept
	return removed
}

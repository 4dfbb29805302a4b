package syncq

import (
	"github.com/asteroid-belt/skillsync/internal/models"
)

// coalesce folds an incoming mutation into an existing pending change for
// the same (collection, id) key. It returns the replacement entry, or nil
// with drop=true when the pair cancels out entirely.
//
//	existing   incoming   result
//	(none)     any        incoming
//	create     update     create, data merged
//	create     delete     dropped (never existed remotely)
//	update     update     update, data merged last-write-wins per field
//	update     delete     delete
//	delete     any        existing delete kept (entity already gone)
//
// The result is always a fresh value; existing entries are never mutated in
// place, so a snapshot taken by an in-flight flush stays stable.
func coalesce(existing *models.PendingChange, incoming models.PendingChange) (result *models.PendingChange, drop bool) {
	if existing == nil {
		c := incoming
		c.Data = incoming.Data.Clone()
		return &c, false
	}

	switch existing.Type {
	case models.ChangeCreate:
		switch incoming.Type {
		case models.ChangeDelete:
			return nil, true
		default:
			c := *existing
			c.Data = existing.Data.Merge(incoming.Data)
			c.Timestamp = incoming.Timestamp
			return &c, false
		}

	case models.ChangeUpdate:
		switch incoming.Type {
		case models.ChangeDelete:
			c := incoming
			c.Data = nil
			c.RetryCount = existing.RetryCount
			return &c, false
		default:
			c := *existing
			c.Data = existing.Data.Merge(incoming.Data)
			c.Timestamp = incoming.Timestamp
			return &c, false
		}

	default: // delete: the entity is already gone locally
		return existing, false
	}
}

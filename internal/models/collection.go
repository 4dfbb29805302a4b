// Package models defines the core data structures for skillsync.
package models

import "fmt"

// Collection identifies one of the synchronized record sets.
type Collection string

// Known collections.
const (
	CollectionSkills    Collection = "skills"
	CollectionProjects  Collection = "projects"
	CollectionResources Collection = "resources"
)

// ValidCollections returns all known collections in a stable order.
func ValidCollections() []Collection {
	return []Collection{CollectionSkills, CollectionProjects, CollectionResources}
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	for _, v := range ValidCollections() {
		if c == v {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// String returns the wire name of the collection.
func (c Collection) String() string {
	return string(c)
}

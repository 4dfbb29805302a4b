package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks locally generated ids that have not been assigned by
// the server. Such records exist only in the local cache until the create
// round-trips.
const TempIDPrefix = "temp-"

// NewTempID generates a local id for an optimistically created record.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether an id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Entity is the common behavior of all cached records. The cache holds the
// canonical in-memory copy of each entity; all mutation goes through
// ApplyPatch and Touch.
type Entity interface {
	EntityID() string
	Touch(t time.Time)
	ApplyPatch(p Patch) error
	CloneEntity() Entity
}

// Skill statuses.
const (
	SkillStatusLearning   = "learning"
	SkillStatusPracticing = "practicing"
	SkillStatusMastered   = "mastered"
)

// Skill represents a tracked skill.
type Skill struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the record id.
func (s *Skill) EntityID() string { return s.ID }

// Touch stamps the last-modified time.
func (s *Skill) Touch(t time.Time) { s.UpdatedAt = t }

// CloneEntity returns an independent copy.
func (s *Skill) CloneEntity() Entity {
	c := *s
	return &c
}

// ApplyPatch applies a partial update. Unknown fields are rejected rather
// than silently spread into the record.
func (s *Skill) ApplyPatch(p Patch) error {
	for k, v := range p {
		switch k {
		case "name":
			if err := patchString(&s.Name, k, v); err != nil {
				return err
			}
		case "category":
			if err := patchString(&s.Category, k, v); err != nil {
				return err
			}
		case "status":
			if err := patchString(&s.Status, k, v); err != nil {
				return err
			}
		case "progress":
			if err := patchInt(&s.Progress, k, v); err != nil {
				return err
			}
		case "notes":
			if err := patchString(&s.Notes, k, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("skill patch: unknown field %q", k)
		}
	}
	return nil
}

// Project statuses.
const (
	ProjectStatusPlanned   = "planned"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
)

// Project represents a project that exercises one or more skills.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	SkillIDs    []string  `json:"skill_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityID returns the record id.
func (p *Project) EntityID() string { return p.ID }

// Touch stamps the last-modified time.
func (p *Project) Touch(t time.Time) { p.UpdatedAt = t }

// CloneEntity returns an independent copy.
func (p *Project) CloneEntity() Entity {
	c := *p
	c.SkillIDs = append([]string(nil), p.SkillIDs...)
	return &c
}

// ApplyPatch applies a partial update, rejecting unknown fields.
func (p *Project) ApplyPatch(patch Patch) error {
	for k, v := range patch {
		switch k {
		case "name":
			if err := patchString(&p.Name, k, v); err != nil {
				return err
			}
		case "description":
			if err := patchString(&p.Description, k, v); err != nil {
				return err
			}
		case "status":
			if err := patchString(&p.Status, k, v); err != nil {
				return err
			}
		case "skill_ids":
			if err := patchStringSlice(&p.SkillIDs, k, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("project patch: unknown field %q", k)
		}
	}
	return nil
}

// Resource kinds.
const (
	ResourceKindArticle = "article"
	ResourceKindVideo   = "video"
	ResourceKindCourse  = "course"
	ResourceKindBook    = "book"
)

// Resource represents a learning resource attached to a skill.
type Resource struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	SkillID   string    `json:"skill_id"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the record id.
func (r *Resource) EntityID() string { return r.ID }

// Touch stamps the last-modified time.
func (r *Resource) Touch(t time.Time) { r.UpdatedAt = t }

// CloneEntity returns an independent copy.
func (r *Resource) CloneEntity() Entity {
	c := *r
	return &c
}

// ApplyPatch applies a partial update, rejecting unknown fields.
func (r *Resource) ApplyPatch(p Patch) error {
	for k, v := range p {
		switch k {
		case "title":
			if err := patchString(&r.Title, k, v); err != nil {
				return err
			}
		case "url":
			if err := patchString(&r.URL, k, v); err != nil {
				return err
			}
		case "kind":
			if err := patchString(&r.Kind, k, v); err != nil {
				return err
			}
		case "skill_id":
			if err := patchString(&r.SkillID, k, v); err != nil {
				return err
			}
		case "completed":
			if err := patchBool(&r.Completed, k, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("resource patch: unknown field %q", k)
		}
	}
	return nil
}

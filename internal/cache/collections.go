package cache

import (
	"context"
	"encoding/json"

	"github.com/asteroid-belt/skillsync/internal/models"
)

// Typed per-collection surface. Each collection gets the same four
// operations; the shapes differ, the flow does not.

// FetchSkills returns the skills collection, serving cached data when
// fresh and revalidating in the background when stale.
func (c *Cache) FetchSkills(ctx context.Context, force bool) ([]models.Skill, error) {
	ents, err := c.fetch(ctx, models.CollectionSkills, force, decodeSkills)
	if err != nil {
		return nil, err
	}
	return entitySkills(ents), nil
}

// CreateSkill creates a skill remotely and returns the server's copy.
func (c *Cache) CreateSkill(ctx context.Context, skill models.Skill) (*models.Skill, error) {
	if skill.ID == "" {
		skill.ID = models.NewTempID()
	}
	now := c.now()
	skill.CreatedAt = now
	skill.UpdatedAt = now

	var created models.Skill
	if err := c.create(ctx, models.CollectionSkills, skill, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSkill applies an optimistic partial update. With immediate set,
// the change is pushed to the server before returning.
func (c *Cache) UpdateSkill(ctx context.Context, id string, patch models.Patch, immediate bool) error {
	return c.update(ctx, models.CollectionSkills, id, patch, immediate)
}

// DeleteSkill removes a skill locally and remotely.
func (c *Cache) DeleteSkill(ctx context.Context, id string) error {
	return c.delete(ctx, models.CollectionSkills, id)
}

// FetchProjects returns the projects collection.
func (c *Cache) FetchProjects(ctx context.Context, force bool) ([]models.Project, error) {
	ents, err := c.fetch(ctx, models.CollectionProjects, force, decodeProjects)
	if err != nil {
		return nil, err
	}
	return entityProjects(ents), nil
}

// CreateProject creates a project remotely and returns the server's copy.
func (c *Cache) CreateProject(ctx context.Context, project models.Project) (*models.Project, error) {
	if project.ID == "" {
		project.ID = models.NewTempID()
	}
	now := c.now()
	project.CreatedAt = now
	project.UpdatedAt = now

	var created models.Project
	if err := c.create(ctx, models.CollectionProjects, project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProject applies an optimistic partial update.
func (c *Cache) UpdateProject(ctx context.Context, id string, patch models.Patch, immediate bool) error {
	return c.update(ctx, models.CollectionProjects, id, patch, immediate)
}

// DeleteProject removes a project locally and remotely.
func (c *Cache) DeleteProject(ctx context.Context, id string) error {
	return c.delete(ctx, models.CollectionProjects, id)
}

// FetchResources returns the resources collection.
func (c *Cache) FetchResources(ctx context.Context, force bool) ([]models.Resource, error) {
	ents, err := c.fetch(ctx, models.CollectionResources, force, decodeResources)
	if err != nil {
		return nil, err
	}
	return entityResources(ents), nil
}

// CreateResource creates a resource remotely and returns the server's copy.
func (c *Cache) CreateResource(ctx context.Context, resource models.Resource) (*models.Resource, error) {
	if resource.ID == "" {
		resource.ID = models.NewTempID()
	}
	now := c.now()
	resource.CreatedAt = now
	resource.UpdatedAt = now

	var created models.Resource
	if err := c.create(ctx, models.CollectionResources, resource, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateResource applies an optimistic partial update.
func (c *Cache) UpdateResource(ctx context.Context, id string, patch models.Patch, immediate bool) error {
	return c.update(ctx, models.CollectionResources, id, patch, immediate)
}

// DeleteResource removes a resource locally and remotely.
func (c *Cache) DeleteResource(ctx context.Context, id string) error {
	return c.delete(ctx, models.CollectionResources, id)
}

// --- decode and conversion helpers ---

func decodeSkills(raw json.RawMessage) ([]models.Entity, error) {
	var skills []models.Skill
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil, err
	}
	return skillEntities(skills), nil
}

func decodeProjects(raw json.RawMessage) ([]models.Entity, error) {
	var projects []models.Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, err
	}
	return projectEntities(projects), nil
}

func decodeResources(raw json.RawMessage) ([]models.Entity, error) {
	var resources []models.Resource
	if err := json.Unmarshal(raw, &resources); err != nil {
		return nil, err
	}
	return resourceEntities(resources), nil
}

func skillEntities(skills []models.Skill) []models.Entity {
	ents := make([]models.Entity, len(skills))
	for i := range skills {
		s := skills[i]
		ents[i] = &s
	}
	return ents
}

func projectEntities(projects []models.Project) []models.Entity {
	ents := make([]models.Entity, len(projects))
	for i := range projects {
		p := projects[i]
		ents[i] = &p
	}
	return ents
}

func resourceEntities(resources []models.Resource) []models.Entity {
	ents := make([]models.Entity, len(resources))
	for i := range resources {
		r := resources[i]
		ents[i] = &r
	}
	return ents
}

func entitySkills(ents []models.Entity) []models.Skill {
	skills := make([]models.Skill, 0, len(ents))
	for _, e := range ents {
		if s, ok := e.(*models.Skill); ok {
			skills = append(skills, *s)
		}
	}
	return skills
}

func entityProjects(ents []models.Entity) []models.Project {
	projects := make([]models.Project, 0, len(ents))
	for _, e := range ents {
		if p, ok := e.(*models.Project); ok {
			projects = append(projects, *p)
		}
	}
	return projects
}

func entityResources(ents []models.Entity) []models.Resource {
	resources := make([]models.Resource, 0, len(ents))
	for _, e := range ents {
		if r, ok := e.(*models.Resource); ok {
			resources = append(resources, *r)
		}
	}
	return resources
}

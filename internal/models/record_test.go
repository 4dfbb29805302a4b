package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillApplyPatch(t *testing.T) {
	s := &Skill{ID: "s1", Name: "Go", Status: SkillStatusLearning, Progress: 10}

	err := s.ApplyPatch(Patch{"status": SkillStatusMastered, "progress": 90})
	require.NoError(t, err)
	assert.Equal(t, SkillStatusMastered, s.Status)
	assert.Equal(t, 90, s.Progress)
	assert.Equal(t, "Go", s.Name, "untouched fields must survive")
}

func TestSkillApplyPatch_UnknownField(t *testing.T) {
	s := &Skill{ID: "s1"}
	err := s.ApplyPatch(Patch{"stars": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestSkillApplyPatch_WrongType(t *testing.T) {
	s := &Skill{ID: "s1"}
	err := s.ApplyPatch(Patch{"name": 42})
	require.Error(t, err)
}

func TestSkillApplyPatch_JSONNumbers(t *testing.T) {
	// JSON decoding hands numbers over as float64.
	s := &Skill{ID: "s1"}
	require.NoError(t, s.ApplyPatch(Patch{"progress": float64(75)}))
	assert.Equal(t, 75, s.Progress)
}

func TestProjectApplyPatch_SkillIDs(t *testing.T) {
	p := &Project{ID: "p1"}

	require.NoError(t, p.ApplyPatch(Patch{"skill_ids": []string{"s1", "s2"}}))
	assert.Equal(t, []string{"s1", "s2"}, p.SkillIDs)

	// JSON form.
	require.NoError(t, p.ApplyPatch(Patch{"skill_ids": []any{"s3"}}))
	assert.Equal(t, []string{"s3"}, p.SkillIDs)

	require.Error(t, p.ApplyPatch(Patch{"skill_ids": []any{7}}))
}

func TestResourceApplyPatch(t *testing.T) {
	r := &Resource{ID: "r1", Title: "Effective Go"}
	require.NoError(t, r.ApplyPatch(Patch{"completed": true, "kind": ResourceKindArticle}))
	assert.True(t, r.Completed)
	assert.Equal(t, ResourceKindArticle, r.Kind)
}

func TestCloneEntityIsIndependent(t *testing.T) {
	p := &Project{ID: "p1", SkillIDs: []string{"s1"}}
	clone := p.CloneEntity().(*Project)
	clone.SkillIDs[0] = "changed"
	clone.Name = "other"

	assert.Equal(t, "s1", p.SkillIDs[0])
	assert.Empty(t, p.Name)
}

func TestPatchMerge_LastWriteWinsPerField(t *testing.T) {
	a := Patch{"status": "learning", "notes": "keep"}
	b := Patch{"status": "mastered"}

	merged := a.Merge(b)
	assert.Equal(t, "mastered", merged["status"])
	assert.Equal(t, "keep", merged["notes"])

	// Inputs untouched.
	assert.Equal(t, "learning", a["status"])
}

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.False(t, IsTempID("srv-123"))
	assert.NotEqual(t, id, NewTempID())
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("skills")
	require.NoError(t, err)
	assert.Equal(t, CollectionSkills, c)

	_, err = ParseCollection("widgets")
	require.Error(t, err)
}

func TestChangeKey(t *testing.T) {
	c := &PendingChange{ID: "s1", Collection: CollectionSkills}
	assert.Equal(t, "skills:s1", c.Key())
}

func TestClassifyLatency(t *testing.T) {
	assert.Equal(t, QualityGood, ClassifyLatency(200*time.Millisecond))
	assert.Equal(t, QualityGood, ClassifyLatency(999*time.Millisecond))
	assert.Equal(t, QualitySlow, ClassifyLatency(time.Second))
	assert.Equal(t, QualitySlow, ClassifyLatency(3*time.Second))
	assert.Equal(t, QualityPoor, ClassifyLatency(3*time.Second+time.Millisecond))
}

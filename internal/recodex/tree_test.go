package recodex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGroup builds a bare group node for hierarchy tests.
func testGroup(id, parentID, name string) *Group {
	return &Group{
		ID:            id,
		ParentGroupID: parentID,
		Name:          map[string]string{"en": name},
		Attributes:    map[string][]string{},
	}
}

// testForest builds the arena used by most hierarchy tests:
//
//	root
//	  course-a   (course: C1)
//	    term-a   (term: T1)
//	      lab-a1 (group: E1)
//	      lab-a2 (group: E2)
//	  course-b   (course: C2)
func testForest() map[string]*Group {
	root := testGroup("root", "", "Root")
	courseA := testGroup("course-a", "root", "Course A")
	courseA.Attributes[AttrCourseKey] = []string{"C1"}
	termA := testGroup("term-a", "course-a", "Term A")
	termA.Attributes[AttrTermKey] = []string{"T1"}
	labA1 := testGroup("lab-a1", "term-a", "Lab A1")
	labA1.Attributes[AttrGroupKey] = []string{"E1"}
	labA2 := testGroup("lab-a2", "term-a", "Lab A2")
	labA2.Attributes[AttrGroupKey] = []string{"E2"}
	courseB := testGroup("course-b", "root", "Course B")
	courseB.Attributes[AttrCourseKey] = []string{"C2"}

	return map[string]*Group{
		"root":     root,
		"course-a": courseA,
		"term-a":   termA,
		"lab-a1":   labA1,
		"lab-a2":   labA2,
		"course-b": courseB,
	}
}

func groupIDs(groups []*Group) []string {
	ids := make([]string, 0, len(groups))
	for _, group := range groups {
		ids = append(ids, group.ID)
	}

	return ids
}

func selectedIDs(groups map[string]*Group) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	return ids
}

func TestPopulateChildren(t *testing.T) {
	groups := testForest()
	groups["root2"] = testGroup("root2", "", "Another Root")

	roots, err := PopulateChildren(groups)
	require.NoError(t, err)

	// every group is either a root or a child of exactly one parent
	assert.Equal(t, []string{"root2", "root"}, groupIDs(roots))
	assert.Equal(t, []string{"course-a", "course-b"}, groupIDs(groups["root"].Children))
	assert.Equal(t, []string{"lab-a1", "lab-a2"}, groupIDs(groups["term-a"].Children))
	assert.Empty(t, groups["course-b"].Children)

	total := len(roots)
	for _, group := range groups {
		total += len(group.Children)
	}
	assert.Equal(t, len(groups), total)
}

func TestPopulateChildrenSortsByDisplayName(t *testing.T) {
	groups := map[string]*Group{
		"p": testGroup("p", "", "Parent"),
		"b": testGroup("b", "p", "Banana"),
		"a": testGroup("a", "p", "Apple"),
		"c": testGroup("c", "p", "Cherry"),
	}

	_, err := PopulateChildren(groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, groupIDs(groups["p"].Children))
}

func TestPopulateChildrenMissingParent(t *testing.T) {
	groups := map[string]*Group{
		"orphan": testGroup("orphan", "nonexistent", "Orphan"),
	}

	_, err := PopulateChildren(groups)
	assert.ErrorIs(t, err, ErrParentGroupMissing)
}

func TestPopulateChildrenCycle(t *testing.T) {
	groups := map[string]*Group{
		"a": testGroup("a", "b", "A"),
		"b": testGroup("b", "a", "B"),
	}

	_, err := PopulateChildren(groups)
	assert.ErrorIs(t, err, ErrGroupCycle)

	// a healthy subtree does not mask a detached cycle
	groups = map[string]*Group{
		"root":  testGroup("root", "", "Root"),
		"child": testGroup("child", "root", "Child"),
		"a":     testGroup("a", "b", "A"),
		"b":     testGroup("b", "a", "B"),
	}

	_, err = PopulateChildren(groups)
	assert.ErrorIs(t, err, ErrGroupCycle)
}

func TestAncestralClosure(t *testing.T) {
	groups := testForest()
	selected := map[string]*Group{"lab-a1": groups["lab-a1"]}

	require.NoError(t, AncestralClosure(selected, groups))
	assert.ElementsMatch(t, []string{"lab-a1", "term-a", "course-a", "root"}, selectedIDs(selected))
}

func TestAncestralClosureIdempotent(t *testing.T) {
	groups := testForest()
	selected := map[string]*Group{"lab-a2": groups["lab-a2"]}

	require.NoError(t, AncestralClosure(selected, groups))
	first := selectedIDs(selected)

	require.NoError(t, AncestralClosure(selected, groups))
	assert.ElementsMatch(t, first, selectedIDs(selected))
}

func TestAncestralClosureCycle(t *testing.T) {
	a := testGroup("a", "b", "A")
	b := testGroup("b", "a", "B")
	groups := map[string]*Group{"a": a, "b": b}
	selected := map[string]*Group{"a": a}

	assert.ErrorIs(t, AncestralClosure(selected, groups), ErrGroupCycle)
}

func TestPruneForStudent(t *testing.T) {
	tests := []struct {
		name       string
		membership map[string]Membership
		eventIDs   []string
		expected   []string
	}{
		{
			name:     "event binding selects group and its ancestors",
			eventIDs: []string{"E1"},
			expected: []string{"lab-a1", "term-a", "course-a", "root"},
		},
		{
			name:       "existing membership is kept even without events",
			membership: map[string]Membership{"lab-a2": MembershipStudent},
			expected:   []string{"lab-a2", "term-a", "course-a", "root"},
		},
		{
			name:     "no events and no membership yields empty selection",
			expected: []string{},
		},
		{
			name:       "event bindings and memberships are combined",
			membership: map[string]Membership{"lab-a2": MembershipStudent},
			eventIDs:   []string{"E1"},
			expected:   []string{"lab-a1", "lab-a2", "term-a", "course-a", "root"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			groups := testForest()
			for id, membership := range test.membership {
				groups[id].Membership = membership
			}

			pruned, err := PruneForStudent(groups, test.eventIDs)
			require.NoError(t, err)
			assert.ElementsMatch(t, test.expected, selectedIDs(pruned))
		})
	}
}

func TestPruneForStudentIgnoresOtherMemberships(t *testing.T) {
	groups := testForest()
	groups["lab-a1"].Membership = MembershipSupervisor
	groups["lab-a2"].Membership = MembershipObserver

	pruned, err := PruneForStudent(groups, nil)
	require.NoError(t, err)
	assert.Empty(t, pruned)
}

func TestPruneForTeacher(t *testing.T) {
	tests := []struct {
		name      string
		courseIDs []string
		eventIDs  []string
		expected  []string
	}{
		{
			name:      "course attribute selects subtree and ancestors",
			courseIDs: []string{"C1"},
			expected:  []string{"course-a", "term-a", "lab-a1", "lab-a2", "root"},
		},
		{
			name:     "event binding selects the bound group and its ancestors",
			eventIDs: []string{"E2"},
			expected: []string{"lab-a2", "term-a", "course-a", "root"},
		},
		{
			name:      "course without children stays a leaf selection",
			courseIDs: []string{"C2"},
			expected:  []string{"course-b", "root"},
		},
		{
			name:     "empty inputs yield empty selection",
			expected: []string{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			groups := testForest()

			pruned, err := PruneForTeacher(groups, test.courseIDs, test.eventIDs)
			require.NoError(t, err)
			assert.ElementsMatch(t, test.expected, selectedIDs(pruned))
		})
	}
}

func TestPruneForTeacherDeepDescendants(t *testing.T) {
	// chain course -> a -> b -> c, only the course carries the attribute
	course := testGroup("course", "", "Course")
	course.Attributes[AttrCourseKey] = []string{"C1"}
	a := testGroup("a", "course", "A")
	b := testGroup("b", "a", "B")
	c := testGroup("c", "b", "C")
	groups := map[string]*Group{"course": course, "a": a, "b": b, "c": c}

	pruned, err := PruneForTeacher(groups, []string{"C1"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"course", "a", "b", "c"}, selectedIDs(pruned))
}

func TestPruneIsSubsetOfClosure(t *testing.T) {
	groups := testForest()

	pruned, err := PruneForStudent(groups, []string{"E1", "E2"})
	require.NoError(t, err)

	for id, group := range pruned {
		assert.Same(t, groups[id], group)
	}
}

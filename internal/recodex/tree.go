package recodex

import "sort"

// sortGroupsByName orders groups by display name (English, Czech fallback).
func sortGroupsByName(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].DisplayName() < groups[j].DisplayName()
	})
}

// PopulateChildren links every group into its parent's children list and
// returns the ordered list of root groups. Children and roots are sorted by
// display name. A group referencing a parent outside the given set, or a
// cycle in the parent chain, indicates a contract violation by ReCodEx and
// fails the whole construction.
func PopulateChildren(groups map[string]*Group) ([]*Group, error) {
	var rootGroups []*Group
	for _, group := range groups {
		if group.ParentGroupID != "" {
			parent, ok := groups[group.ParentGroupID]
			if !ok {
				return nil, ErrParentGroupMissing
			}
			parent.Children = append(parent.Children, group)
		} else {
			rootGroups = append(rootGroups, group)
		}
	}

	// a group not reachable from any root sits on a parent cycle
	reachable := 0
	stack := append([]*Group{}, rootGroups...)
	for len(stack) > 0 {
		group := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reachable++
		stack = append(stack, group.Children...)
	}
	if reachable != len(groups) {
		return nil, ErrGroupCycle
	}

	for _, group := range groups {
		sortGroupsByName(group.Children)
	}
	sortGroupsByName(rootGroups)

	return rootGroups, nil
}

// AncestralClosure makes sure all ancestors of the selected groups are
// included in the selection. The selected map is updated in place.
//
// The parent chain is expected to be acyclic; a cycle supplied by the remote
// service is reported as a data-integrity error instead of looping forever.
func AncestralClosure(selected map[string]*Group, all map[string]*Group) error {
	// snapshot the initial selection, the map is mutated while walking
	toCheck := make([]string, 0, len(selected))
	for id := range selected {
		toCheck = append(toCheck, id)
	}

	for _, id := range toCheck {
		chain := map[string]bool{id: true}
		current, ok := all[id]

		for ok && current.ParentGroupID != "" {
			parentID := current.ParentGroupID
			if chain[parentID] {
				return ErrGroupCycle
			}
			chain[parentID] = true

			parent, found := all[parentID]
			if !found {
				break
			}
			if _, already := selected[parentID]; !already {
				selected[parentID] = parent
			}
			current = parent
		}
	}

	return nil
}

// belongsToSisGroup checks whether any of the group's SIS bindings is in the index.
func belongsToSisGroup(group *Group, sisEventIndex map[string]bool) bool {
	for _, sisGroupID := range group.Attributes[AttrGroupKey] {
		if sisEventIndex[sisGroupID] {
			return true
		}
	}

	return false
}

// belongsToCourses checks whether any of the group's course attributes is in the index.
func belongsToCourses(group *Group, coursesIndex map[string]bool) bool {
	for _, courseID := range group.Attributes[AttrCourseKey] {
		if coursesIndex[courseID] {
			return true
		}
	}

	return false
}

func indexOf(ids []string) map[string]bool {
	index := make(map[string]bool, len(ids))
	for _, id := range ids {
		index[id] = true
	}

	return index
}

// PruneForStudent keeps only groups relevant for a student: groups bound to
// any of the given SIS scheduling events and groups where the student already
// is a member. The ancestral closure of the selection is returned so
// hierarchical names can be displayed.
func PruneForStudent(groups map[string]*Group, sisEventIDs []string) (map[string]*Group, error) {
	sisEventIndex := indexOf(sisEventIDs)
	pruned := map[string]*Group{}
	for id, group := range groups {
		if belongsToSisGroup(group, sisEventIndex) || group.Membership == MembershipStudent {
			pruned[id] = group
		}
	}

	if err := AncestralClosure(pruned, groups); err != nil {
		return nil, err
	}

	return pruned, nil
}

// PruneForTeacher keeps only groups relevant for a teacher creating groups:
// groups that belong to any of the given courses or are bound to any of the
// teacher's scheduling events, plus all their descendants (possible targets)
// and ancestors (for hierarchical naming).
func PruneForTeacher(groups map[string]*Group, courseIDs, eventIDs []string) (map[string]*Group, error) {
	coursesIndex := indexOf(courseIDs)
	sisEventIndex := indexOf(eventIDs)
	pruned := map[string]*Group{}
	for id, group := range groups {
		if belongsToCourses(group, coursesIndex) || belongsToSisGroup(group, sisEventIndex) {
			pruned[id] = group
		}
	}

	// Iteratively scan the groups, adding children of already selected groups
	// as long as the selection grows. The hierarchy is very flat in practice,
	// but the loop must run to quiescence, not to a fixed bound.
	for {
		changed := false
		for id, group := range groups {
			if group.ParentGroupID == "" {
				continue
			}
			if _, selected := pruned[id]; selected {
				continue
			}
			if _, parentSelected := pruned[group.ParentGroupID]; parentSelected {
				pruned[id] = group
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if err := AncestralClosure(pruned, groups); err != nil {
		return nil, err
	}

	return pruned, nil
}

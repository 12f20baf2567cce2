package dedupe

// Detect groups translations by (locale, property) and returns every group
// with two or more members. Members keep input order and groups are returned
// in the order their key was first seen. The first member of each group is
// pre-selected as the default winner.
func Detect(translations []Translation) []DuplicateGroup {
	var order []DuplicateKey
	byKey := make(map[DuplicateKey][]Translation)

	for _, t := range translations {
		k := t.Key()
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], t)
	}

	var groups []DuplicateGroup
	for _, k := range order {
		members := byKey[k]
		if len(members) < 2 {
			continue
		}
		g := DuplicateGroup{Key: k, Members: make([]TranslationCandidate, len(members))}
		for i, t := range members {
			g.Members[i] = TranslationCandidate{Translation: t, Selected: i == 0}
		}
		groups = append(groups, g)
	}
	return groups
}

// DetectObject runs Detect over one object's translations and stamps each
// group with the object's identity and a snapshot of its full list.
func DetectObject(t ObjectType, o Object) []DuplicateGroup {
	groups := Detect(o.Translations)
	if len(groups) == 0 {
		return nil
	}

	snapshot := append([]Translation(nil), o.Translations...)
	for i := range groups {
		groups[i].Type = t
		groups[i].ObjectID = o.ID
		groups[i].ObjectName = o.Name
		groups[i].Original = snapshot
	}
	return groups
}

// DuplicateKeys returns the distinct keys covered by groups, in group order.
func DuplicateKeys(groups []DuplicateGroup) []DuplicateKey {
	seen := make(map[DuplicateKey]bool, len(groups))
	var keys []DuplicateKey
	for _, g := range groups {
		if seen[g.Key] {
			continue
		}
		seen[g.Key] = true
		keys = append(keys, g.Key)
	}
	return keys
}

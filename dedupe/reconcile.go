package dedupe

// Reconcile computes the replacement translation list for one object.
//
// Every translation in fresh whose (locale, property) is covered by one of
// groups is removed, whether or not it still collides. Then, for each group in
// order, the selected member is appended. A group with no selection drops its
// key from the object entirely. Translations outside the groups' keys are
// kept in their original order.
//
// The key set comes from groups, captured at detection time, and is never
// re-derived from fresh or from the replacements. Running Reconcile again on
// its own output with the same groups yields the same list.
func Reconcile(fresh []Translation, groups []DuplicateGroup) []Translation {
	keys := DuplicateKeys(groups)
	covered := make(map[DuplicateKey]bool, len(keys))
	for _, k := range keys {
		covered[k] = true
	}

	out := make([]Translation, 0, len(fresh))
	for _, t := range fresh {
		if covered[t.Key()] {
			continue
		}
		out = append(out, t)
	}

	for _, g := range groups {
		winner, ok := g.Winner()
		if !ok {
			continue
		}
		out = append(out, Translation{
			Locale:   g.Key.Locale,
			Property: g.Key.Property,
			Value:    winner.Value,
		})
	}
	return out
}

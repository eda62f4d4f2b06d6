package catalog

// JunkLearner derives the junk-image exclusion set from the archive build
// history of a gallery lineage. A digest becomes a learned signature only
// when it was present in an earlier build and absent from the most recent
// one: an explicit later exclusion is the signal, a digest present in every
// build to date is never classified. Signatures are global and monotonic;
// a false positive can only be undone by hand in the store.
type JunkLearner struct {
	catalog Catalog
	clock   Clock
}

func NewJunkLearner(catalog Catalog, clock Clock) *JunkLearner {
	return &JunkLearner{catalog: catalog, clock: clock}
}

// Learn diffs the lineage's build manifests and records any newly excluded
// digests. Returns the digests learned by this call.
func (l *JunkLearner) Learn(gid int64) ([]string, error) {
	history, err := l.catalog.BuildHistory(gid)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, nil
	}

	latest := history[len(history)-1]
	latestDigests, err := l.catalog.BuildDigests(latest.ID)
	if err != nil {
		return nil, err
	}
	inLatest := make(map[string]bool, len(latestDigests))
	for _, d := range latestDigests {
		inLatest[d] = true
	}

	var learned []string
	seen := make(map[string]bool)
	for _, build := range history[:len(history)-1] {
		digests, err := l.catalog.BuildDigests(build.ID)
		if err != nil {
			return nil, err
		}
		for _, d := range digests {
			if !inLatest[d] && !seen[d] {
				seen[d] = true
				learned = append(learned, d)
			}
		}
	}
	if len(learned) == 0 {
		return nil, nil
	}

	if err := l.catalog.AddJunkSignatures(learned, l.clock.Now()); err != nil {
		return nil, err
	}
	return learned, nil
}

// Exclusions returns the full junk set, keyed by digest value alone.
func (l *JunkLearner) Exclusions() (map[string]bool, error) {
	return l.catalog.JunkSignatures()
}

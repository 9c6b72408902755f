package dispatch

// Normalize drops candidates without an hpid and removes duplicates within
// and across tiers. A hospital listed in several tiers keeps its highest
// priority one (primary, then backup, then neighbor).
func Normalize(t Tiers) Tiers {
	seen := make(map[string]bool)
	keep := func(cands []Candidate, tier Tier) []Candidate {
		var out []Candidate
		for _, c := range cands {
			if c.HospitalID == "" || seen[c.HospitalID] {
				continue
			}
			seen[c.HospitalID] = true
			c.Tier = tier
			out = append(out, c)
		}
		return out
	}
	return Tiers{
		Primary:  keep(t.Primary, TierPrimary),
		Backup:   keep(t.Backup, TierBackup),
		Neighbor: keep(t.Neighbor, TierNeighbor),
	}
}

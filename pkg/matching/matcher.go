package matching

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

// ContactRecord aggregates everything the matcher needs to know about one
// active contact: the row itself, every owned email address, external
// identities, and transaction keys for overlap scoring.
type ContactRecord struct {
	Contact         *models.Contact
	Emails          []string
	Identities      []models.ExternalIdentity
	TransactionKeys []string
}

// Result is the output of one detection pass.
type Result struct {
	Groups    []*models.DuplicateGroup
	Conflicts []models.IdentityConflict
}

// Matcher produces duplicate groups from the active contact set using a
// priority-ordered key hierarchy: exact email, name+phone, name+address,
// then fuzzy name. Overlapping matches collapse into one transitive-closure
// group; fuzzy matches stay in their own review-only groups.
type Matcher struct {
	sim       Similarity
	threshold float64
	logger    *zap.Logger
}

// NewMatcher creates a matcher with the given similarity strategy and fuzzy
// threshold (0..1).
func NewMatcher(sim Similarity, threshold float64, logger *zap.Logger) *Matcher {
	return &Matcher{
		sim:       sim,
		threshold: threshold,
		logger:    logger.Named("matcher"),
	}
}

// Match runs the key hierarchy over records and returns duplicate groups
// plus identity conflicts. Records for deleted or aliased contacts are
// ignored.
func (m *Matcher) Match(records []ContactRecord) *Result {
	active := make([]ContactRecord, 0, len(records))
	for _, r := range records {
		if r.Contact.IsActive() {
			active = append(active, r)
		}
	}

	uf := newUnionFind(len(active))

	// keys[root] accumulates the match keys that built each component;
	// merged whenever two components union.
	keys := make([]map[string]bool, len(active))
	for i := range keys {
		keys[i] = make(map[string]bool)
	}
	link := func(a, b int, key string) {
		ra, rb := uf.find(a), uf.find(b)
		if ra == rb {
			keys[ra][key] = true
			return
		}
		merged := keys[ra]
		for k := range keys[rb] {
			merged[k] = true
		}
		merged[key] = true
		keys[uf.union(a, b)] = merged
	}

	// Key 1: exact email match, case-insensitive, across primary and
	// additional addresses.
	m.linkByKey(active, link, MatchKeyEmailCandidates, models.MatchKeyEmail)

	// Key 2: shared external identity is a data error, not a grouping
	// signal. Flag and move on.
	conflicts := m.findIdentityConflicts(active)

	// Keys 3 and 4: exact normalized name corroborated by phone or address.
	m.linkByKey(active, link, matchKeyNamePhoneCandidates, models.MatchKeyNamePhone)
	m.linkByKey(active, link, matchKeyNameAddressCandidates, models.MatchKeyNameAddress)

	groups := m.collectGroups(active, uf, keys)
	groups = append(groups, m.fuzzyGroups(active, uf)...)

	m.logger.Info("Detection pass complete",
		zap.Int("contacts", len(active)),
		zap.Int("groups", len(groups)),
		zap.Int("identity_conflicts", len(conflicts)))

	return &Result{Groups: groups, Conflicts: conflicts}
}

// MatchKeyEmailCandidates returns every normalized email key a record can
// match on. Exported for reuse by the import reconciler, which restricts
// reconciliation to this key plus external identities.
func MatchKeyEmailCandidates(r ContactRecord) []string {
	seen := make(map[string]bool, len(r.Emails)+1)
	var out []string
	add := func(email string) {
		normalized := NormalizeEmail(email)
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			out = append(out, normalized)
		}
	}
	add(r.Contact.Email)
	for _, e := range r.Emails {
		add(e)
	}
	return out
}

func matchKeyNamePhoneCandidates(r ContactRecord) []string {
	name := NormalizeName(r.Contact.FullName())
	phone := NormalizePhone(r.Contact.Phone)
	if name == "" || phone == "" {
		return nil
	}
	return []string{name + "|" + phone}
}

func matchKeyNameAddressCandidates(r ContactRecord) []string {
	name := NormalizeName(r.Contact.FullName())
	addr := AddressKey(r.Contact.BillingStreet, r.Contact.BillingPostalCode)
	if name == "" || addr == "" {
		return nil
	}
	return []string{name + "|" + addr}
}

// linkByKey buckets records by candidate key and unions every bucket with
// two or more members.
func (m *Matcher) linkByKey(records []ContactRecord, link func(a, b int, key string), candidates func(ContactRecord) []string, matchKey string) {
	buckets := make(map[string][]int)
	for i, r := range records {
		for _, key := range candidates(r) {
			buckets[key] = append(buckets[key], i)
		}
	}
	for _, members := range buckets {
		for i := 1; i < len(members); i++ {
			link(members[0], members[i], matchKey)
		}
	}
}

func (m *Matcher) findIdentityConflicts(records []ContactRecord) []models.IdentityConflict {
	owners := make(map[string][]uuid.UUID)
	for _, r := range records {
		for _, ident := range r.Identities {
			key := ident.SourceSystem + "|" + ident.ExternalID
			owners[key] = append(owners[key], r.Contact.ID)
		}
	}

	var conflicts []models.IdentityConflict
	for key, ids := range owners {
		if len(ids) < 2 {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		conflicts = append(conflicts, models.IdentityConflict{
			SourceSystem: parts[0],
			ExternalID:   parts[1],
			ContactIDs:   ids,
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].SourceSystem != conflicts[j].SourceSystem {
			return conflicts[i].SourceSystem < conflicts[j].SourceSystem
		}
		return conflicts[i].ExternalID < conflicts[j].ExternalID
	})
	return conflicts
}


// collectGroups materializes multi-member components into tagged groups.
func (m *Matcher) collectGroups(records []ContactRecord, uf *unionFind, keys []map[string]bool) []*models.DuplicateGroup {
	components := make(map[int][]int)
	for i := range records {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	roots := make([]int, 0, len(components))
	for root, members := range components {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	groups := make([]*models.DuplicateGroup, 0, len(roots))
	for _, root := range roots {
		members := components[root]
		ids := make([]uuid.UUID, len(members))
		for i, idx := range members {
			ids[i] = records[idx].Contact.ID
		}

		matchKeys := make([]string, 0, len(keys[root]))
		for k := range keys[root] {
			matchKeys = append(matchKeys, k)
		}
		sort.Strings(matchKeys)

		groups = append(groups, &models.DuplicateGroup{
			ID:        uuid.New(),
			Members:   ids,
			Tier:      tierForKeys(keys[root]),
			MatchKeys: matchKeys,
		})
	}
	return groups
}

// tierForKeys applies the confidence policy: email is HIGH on its own,
// name+phone combined with name+address is HIGH, either alone is MEDIUM.
func tierForKeys(keys map[string]bool) models.ConfidenceTier {
	if keys[models.MatchKeyEmail] {
		return models.TierHigh
	}
	if keys[models.MatchKeyNamePhone] && keys[models.MatchKeyNameAddress] {
		return models.TierHigh
	}
	return models.TierMedium
}

// fuzzyGroups pairs contacts whose normalized names score at or above the
// threshold but share no exact key. These are review-only and never joined
// into the transitive closure, so a fuzzy edge can never drag a contact
// into an auto-merge.
func (m *Matcher) fuzzyGroups(records []ContactRecord, uf *unionFind) []*models.DuplicateGroup {
	type named struct {
		idx  int
		name string
	}
	names := make([]named, 0, len(records))
	for i, r := range records {
		if n := NormalizeName(r.Contact.FullName()); n != "" {
			names = append(names, named{idx: i, name: n})
		}
	}

	var groups []*models.DuplicateGroup
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if uf.find(names[i].idx) == uf.find(names[j].idx) {
				continue
			}
			if m.sim.Score(names[i].name, names[j].name) < m.threshold {
				continue
			}
			groups = append(groups, &models.DuplicateGroup{
				ID: uuid.New(),
				Members: []uuid.UUID{
					records[names[i].idx].Contact.ID,
					records[names[j].idx].Contact.ID,
				},
				Tier:      models.TierLow,
				MatchKeys: []string{models.MatchKeyFuzzyName},
			})
		}
	}
	return groups
}

package dataset

import "strings"

// matchKind selects how a classification rule token is compared against the
// raw classification string.
type matchKind int

const (
	matchExact matchKind = iota
	matchPrefix
)

type classificationRule struct {
	kind  matchKind
	token string
	group ClassificationGroup
}

// classificationRules maps raw classification tokens to coarse groups.
// Evaluated top to bottom, first match wins. Ordering is load-bearing:
//   - "LL" must precede "L" so LL chondrites are not read as L-type
//   - "EH"/"EL" must precede the bare "E" prefix
//   - named achondrite and planetary prefixes (Eucrite, Howardite, Lunar,
//     Lodranite, Chassignite, ...) must precede the one-letter chondrite
//     prefixes they would otherwise collide with
var classificationRules = []classificationRule{
	{matchExact, "Unknown", GroupUnknown},
	{matchExact, "Stone-uncl", GroupUnknown},
	{matchExact, "Chondrite-ung", GroupUnknown},

	{matchPrefix, "Iron", GroupIron},
	{matchPrefix, "Mesosiderite", GroupMesosiderite},
	{matchPrefix, "Pallasite", GroupPallasite},

	{matchPrefix, "Martian", GroupMartian},
	{matchPrefix, "Shergottite", GroupMartian},
	{matchPrefix, "Nakhlite", GroupMartian},
	{matchPrefix, "Chassignite", GroupMartian},
	{matchPrefix, "Lunar", GroupLunar},

	{matchPrefix, "Howardite", GroupAchondrite},
	{matchPrefix, "Eucrite", GroupAchondrite},
	{matchPrefix, "Diogenite", GroupAchondrite},
	{matchPrefix, "Ureilite", GroupAchondrite},
	{matchPrefix, "Aubrite", GroupAchondrite},
	{matchPrefix, "Angrite", GroupAchondrite},
	{matchPrefix, "Acapulcoite", GroupAchondrite},
	{matchPrefix, "Lodranite", GroupAchondrite},
	{matchPrefix, "Winonaite", GroupAchondrite},
	{matchPrefix, "Brachinite", GroupAchondrite},
	{matchPrefix, "Achondrite", GroupAchondrite},

	{matchPrefix, "EH", GroupEnstatite},
	{matchPrefix, "EL", GroupEnstatite},
	{matchPrefix, "E", GroupEnstatite},

	{matchPrefix, "LL", GroupLLType},
	{matchPrefix, "L", GroupLType},
	{matchPrefix, "H", GroupHType},
	{matchPrefix, "C", GroupCarbonaceous},
}

// Classify maps a raw scientific classification string to its coarse group.
// Total function: empty input classifies as Unknown, anything unmatched as
// Other. Called once per record during normalization, never per query.
func Classify(raw string) ClassificationGroup {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GroupUnknown
	}

	for _, rule := range classificationRules {
		switch rule.kind {
		case matchExact:
			if strings.EqualFold(raw, rule.token) {
				return rule.group
			}
		case matchPrefix:
			if strings.HasPrefix(raw, rule.token) {
				return rule.group
			}
		}
	}
	return GroupOther
}

package record

import "strings"

// Field paths shared by the loaders and the statistics engine.
const (
	VersionField     = "data.version"
	RecoField        = "typo.reco.reco_dt2.0"
	OriginPrefix     = "data.origin"
	WorkplacePrefix  = "data.workplace"
	JourneysPrefix   = "data.freq_mod_journeys"
	ProJourneyPrefix = "data.freq_mod_pro_journeys"
	ProRecoPrefix    = "typo.reco_pro.reco_pros"
)

// journeyVersionPrefix marks rows written by the journey-based intake form.
const journeyVersionPrefix = "2."

// Schema identifies which intake-form layout a row follows.
type Schema int

const (
	// LegacySchema rows carry one scalar frequency column per mode.
	LegacySchema Schema = iota
	// JourneySchema rows carry a list of journeys, each with days and modes.
	JourneySchema
)

func (s Schema) String() string {
	if s == JourneySchema {
		return "journey"
	}
	return "legacy"
}

// SchemaOf classifies a row by its version field.
func SchemaOf(r Row, versionField string) Schema {
	v := r.String(versionField)
	if v != "" && strings.HasPrefix(v, journeyVersionPrefix) {
		return JourneySchema
	}
	return LegacySchema
}

// Partitioned is a table split by schema. Legacy and Journey are disjoint
// and together hold every row of All, in their original order.
type Partitioned struct {
	All     Table
	Legacy  Table
	Journey Table
}

// Partition splits t by the value of versionField. A missing field puts
// every row in Legacy.
func Partition(t Table, versionField string) Partitioned {
	p := Partitioned{All: t}
	for _, r := range t {
		if SchemaOf(r, versionField) == JourneySchema {
			p.Journey = append(p.Journey, r)
		} else {
			p.Legacy = append(p.Legacy, r)
		}
	}
	return p
}

// Completed keeps the rows for which the modal-typology recommendation has
// already been produced. Other rows are excluded from every statistic.
func Completed(t Table) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if r.Has(RecoField) {
			out = append(out, r)
		}
	}
	return out
}

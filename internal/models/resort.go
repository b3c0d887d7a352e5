package models

// ResortStatus tracks a resort through the content lifecycle.
type ResortStatus string

const (
	StatusDiscovered  ResortStatus = "discovered"
	StatusResearched  ResortStatus = "researched"
	StatusDraft       ResortStatus = "draft"
	StatusInReview    ResortStatus = "in_review"
	StatusPublished   ResortStatus = "published"
	StatusUnpublished ResortStatus = "unpublished"
)

type Resort struct {
	ID        string       `json:"id"`
	Slug      string       `json:"slug"`
	Name      string       `json:"name"`
	Country   string       `json:"country"`
	Region    string       `json:"region"`
	Status    ResortStatus `json:"status"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}

// FamilyMetrics holds the structured family-friendliness attributes of a
// resort. Every field is optional: research fills them in incrementally and
// a nil field means "unknown", never "worst". Pointer fields keep that
// distinction through JSON and SQL round-trips.
type FamilyMetrics struct {
	HasChildcare         *bool    `json:"hasChildcare,omitempty"`
	KidsEquipmentRental  *bool    `json:"kidsEquipmentRental,omitempty"`
	MinSkiSchoolAge      *int     `json:"minSkiSchoolAge,omitempty"`
	HasMagicCarpet       *bool    `json:"hasMagicCarpet,omitempty"`
	BeginnerTerrainPct   *float64 `json:"beginnerTerrainPct,omitempty"`
	AvgDayPassUSD        *float64 `json:"avgDayPassUsd,omitempty"`
	TransferTimeMinutes  *int     `json:"transferTimeMinutes,omitempty"`
	FamilyLodgingOnSlope *bool    `json:"familyLodgingOnSlope,omitempty"`
	BestAgeRange         *string  `json:"bestAgeRange,omitempty"`
	NightSkiing          *bool    `json:"nightSkiing,omitempty"`
}

// FamilyMetricsFieldCount is the number of researchable fields above,
// used as the completeness denominator.
const FamilyMetricsFieldCount = 10

// Review is a single parent-oriented review snippet collected during research.
type Review struct {
	ID            string   `json:"id"`
	ResortID      string   `json:"resortId"`
	Source        string   `json:"source"`
	AuthorContext string   `json:"authorContext,omitempty"`
	Body          string   `json:"body"`
	Rating        *float64 `json:"rating,omitempty"`
	CreatedAt     string   `json:"createdAt"`
}

package models

// ContentSections maps a section name to its generated prose. Any subset of
// the canonical sections may be present.
type ContentSections map[string]string

// Canonical section names used by content generation and assessment.
const (
	SectionOverview    = "overview"
	SectionLodging     = "lodging"
	SectionLiftTickets = "lift_tickets"
	SectionSkiSchool   = "ski_school"
	SectionChildcare   = "childcare"
	SectionDining      = "dining"
	SectionLogistics   = "logistics"
)

// CanonicalSections returns the ordered list of sections a complete resort
// page carries. Generation defaults to this list when the job does not name
// specific sections.
func CanonicalSections() []string {
	return []string{
		SectionOverview,
		SectionLodging,
		SectionLiftTickets,
		SectionSkiSchool,
		SectionChildcare,
		SectionDining,
		SectionLogistics,
	}
}

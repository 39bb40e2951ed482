package courses

type EnrollmentStatus string

const (
	StatusPendingPaid EnrollmentStatus = "PENDING_PAID"
	StatusActive      EnrollmentStatus = "ACTIVE"
	StatusInactive    EnrollmentStatus = "INACTIVE"
)

var validNext = map[EnrollmentStatus]map[EnrollmentStatus]bool{
	StatusPendingPaid: {StatusActive: true, StatusInactive: true},
	StatusActive:      {StatusInactive: true},
	StatusInactive:    {StatusActive: true},
}

func CanTransition(from, to EnrollmentStatus) bool {
	return validNext[from][to]
}

func (s EnrollmentStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type CourseLevel string

const (
	LevelBeginner     CourseLevel = "BEGINNER"
	LevelIntermediate CourseLevel = "INTERMEDIATE"
	LevelAdvanced     CourseLevel = "ADVANCED"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
	CourseArchived  CourseStatus = "ARCHIVED"
)

// StatusForPayment is the status an enrollment earns once amountPaid is on
// record: ACTIVE when the first section is covered (or the course has none),
// otherwise PENDING_PAID.
func StatusForPayment(amountPaid, firstSectionPrice int64, hasSections bool) EnrollmentStatus {
	if !hasSections || amountPaid >= firstSectionPrice {
		return StatusActive
	}
	return StatusPendingPaid
}

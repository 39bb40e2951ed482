package courses

const (
	TopicPaymentRecorded    = "enrollment.payment.recorded"
	TopicEntitlementChanged = "enrollment.entitlement.changed"
)

// Partition key = enrollment_id so every event of one enrollment stays ordered.
func PartitionKey(enrollmentID string) []byte { return []byte(enrollmentID) }

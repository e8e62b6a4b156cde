package enum

type IngestionStatus string

const (
	IngestionStatusPending    IngestionStatus = "pending"
	IngestionStatusProcessing IngestionStatus = "processing"
	IngestionStatusCompleted  IngestionStatus = "completed"
	IngestionStatusFailed     IngestionStatus = "failed"
)

func (t IngestionStatus) String() string {
	return string(t)
}

func DecodeIngestionStatus(s string) (IngestionStatus, bool) {
	switch IngestionStatus(s) {
	case IngestionStatusPending, IngestionStatusProcessing, IngestionStatusCompleted, IngestionStatusFailed:
		return IngestionStatus(s), true
	default:
		return "", false
	}
}

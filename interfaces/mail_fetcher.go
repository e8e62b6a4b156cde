package interfaces

import (
	"context"
	"time"
)

// MailAttachment is one attachment part carrying a filename. Extension
// filtering for report-like files is the caller's responsibility.
type MailAttachment struct {
	Filename string
	Content  []byte
}

// MailMessage is a fetched message with its raw RFC822 body.
type MailMessage struct {
	UID        uint32
	MessageID  string
	Subject    string
	ReceivedAt time.Time
	Raw        []byte
}

// MailFetcher pulls report-bearing messages from a mailbox. Connection
// lifecycle is scoped: Connect before use, Logout on every exit path.
type MailFetcher interface {
	Connect(ctx context.Context) error
	Logout()
	// Search returns up to limit most-recent message UIDs whose subject
	// matches the aggregate-report heuristic. False negatives are
	// expected; reporters do not use a standard subject.
	Search(ctx context.Context, limit int) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*MailMessage, error)
	// ExtractAttachments walks MIME parts, skipping multipart containers
	// and text bodies, and returns every part declaring a filename.
	ExtractAttachments(msg *MailMessage) ([]MailAttachment, error)
}

package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dmarcwatch/reportstack/config"
	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

const dialTimeout = 30 * time.Second

// Subject heuristics for aggregate-report mail. Reporters do not use a
// standard subject, so false negatives are expected and acceptable.
var subjectHeuristics = []string{"Report Domain", "DMARC"}

// IMAPService is a scoped-lifecycle mail fetcher: Connect before use,
// Logout on every exit path. It is not safe for concurrent use; each
// ingestion cycle owns one instance.
type IMAPService struct {
	cfg    *config.IMAPConfig
	log    logger.Logger
	client *client.Client
}

func NewIMAPService(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailFetcher {
	return &IMAPService{cfg: cfg, log: log}
}

func (s *IMAPService) Connect(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Connect")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("server", s.cfg.Server)
	span.SetTag("port", s.cfg.Port)
	span.SetTag("tls", s.cfg.TLS)

	if !s.cfg.Configured() {
		err := reportstack_errors.ErrMailConfigMissing
		tracing.TraceErr(span, err)
		return err
	}

	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}

	var c *client.Client
	var err error

	if s.cfg.TLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Server,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	c.Timeout = dialTimeout
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to login as %s", s.cfg.Username)
	}
	c.Timeout = 0

	s.log.Infof("Connected to %s as %s", serverAddr, s.cfg.Username)
	s.client = c
	return nil
}

// Logout closes the session. Logout failures are logged, not raised.
func (s *IMAPService) Logout() {
	if s.client == nil {
		return
	}
	s.client.Timeout = 5 * time.Second
	if err := s.client.Logout(); err != nil {
		s.log.Warnf("IMAP logout failed: %v", err)
	}
	s.client = nil
}

// Search returns up to limit most-recent message UIDs whose subject
// matches one of the report heuristics.
func (s *IMAPService) Search(ctx context.Context, limit int) ([]uint32, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Search")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("limit", limit)

	if s.client == nil {
		return nil, errors.New("not connected")
	}

	if _, err := s.client.Select(s.cfg.Folder, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to select folder %s", s.cfg.Folder)
	}

	seen := make(map[uint32]struct{})
	var uids []uint32
	for _, subject := range subjectHeuristics {
		criteria := goimap.NewSearchCriteria()
		criteria.Header.Set("Subject", subject)
		found, err := s.client.UidSearch(criteria)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrap(err, "subject search failed")
		}
		for _, uid := range found {
			if _, ok := seen[uid]; !ok {
				seen[uid] = struct{}{}
				uids = append(uids, uid)
			}
		}
	}

	// Higher UID means more recently delivered.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	span.SetTag("found", len(uids))
	return uids, nil
}

func (s *IMAPService) Fetch(ctx context.Context, uid uint32) (*interfaces.MailMessage, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Fetch")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("uid", uid)

	if s.client == nil {
		return nil, errors.New("not connected")
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchUid,
		goimap.FetchInternalDate,
		section.FetchItem(),
	}

	messages := make(chan *goimap.Message, 1)
	if err := s.client.UidFetch(seqSet, items, messages); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch message %d", uid)
	}

	msg, ok := <-messages
	if !ok || msg == nil {
		err := fmt.Errorf("message with UID %d not found", uid)
		tracing.TraceErr(span, err)
		return nil, err
	}

	body := msg.GetBody(section)
	if body == nil {
		err := fmt.Errorf("message %d has no body", uid)
		tracing.TraceErr(span, err)
		return nil, err
	}
	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(body); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to read message body")
	}

	out := &interfaces.MailMessage{
		UID:        msg.Uid,
		ReceivedAt: msg.InternalDate,
		Raw:        raw.Bytes(),
	}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
	}
	return out, nil
}

// ExtractAttachments walks MIME parts and returns every non-container,
// non-text-body part that declares a filename. Extension filtering for
// report-like files is the caller's job; unrelated attachments pass
// through and get rejected downstream.
func (s *IMAPService) ExtractAttachments(msg *interfaces.MailMessage) ([]interfaces.MailAttachment, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse MIME envelope")
	}

	var attachments []interfaces.MailAttachment
	collect := func(parts []*enmime.Part) {
		for _, part := range parts {
			if part.FileName == "" {
				continue
			}
			attachments = append(attachments, interfaces.MailAttachment{
				Filename: part.FileName,
				Content:  part.Content,
			})
		}
	}
	collect(envelope.Attachments)
	collect(envelope.Inlines)
	collect(envelope.OtherParts)

	return attachments, nil
}

package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/auth"
	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// Conn is the subset of *client.Client, plus the UIDPLUS extension, a session uses
type Conn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	UidExpunge(seqset *imap.SeqSet, ch chan uint32) error
	SupportUidPlus() (bool, error)
	Logout() error
	Terminate() error
}

// Dialer opens an authenticated IMAP connection with a bearer token
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// imapConn adds UIDPLUS commands to a go-imap client
type imapConn struct {
	*client.Client
	uidplus *uidplus.Client
}

func newIMAPConn(c *client.Client) *imapConn {
	return &imapConn{Client: c, uidplus: uidplus.NewClient(c)}
}

// SupportUidPlus reports whether the server advertises UIDPLUS
func (c *imapConn) SupportUidPlus() (bool, error) {
	return c.uidplus.SupportUidPlus()
}

// UidExpunge permanently removes only the \Deleted messages in seqset
func (c *imapConn) UidExpunge(seqset *imap.SeqSet, ch chan uint32) error {
	return c.uidplus.UidExpunge(seqset, ch)
}

// TLSDialer connects over implicit TLS and authenticates with an OAuth2 SASL mechanism
type TLSDialer struct {
	addr      string
	host      string
	username  string
	mechanism string
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewTLSDialer creates a dialer for the configured IMAP account
func NewTLSDialer(cfg *config.Config, logger *logrus.Logger) *TLSDialer {
	return &TLSDialer{
		addr:      cfg.IMAPAddr(),
		host:      cfg.IMAP.Host,
		username:  cfg.IMAP.User,
		mechanism: cfg.IMAP.Mechanism,
		timeout:   cfg.IMAP.Timeout,
		logger:    logger,
	}
}

// Dial connects and authenticates. Dial and every later command are bounded by the configured timeout.
func (d *TLSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: d.timeout}, d.addr, &tls.Config{
		ServerName: d.host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrConnection, d.addr, err)
	}
	c.Timeout = d.timeout

	if err := c.Authenticate(auth.NewSASLClient(d.mechanism, d.username, token)); err != nil {
		d.logger.WithError(err).WithField("user", d.username).Error("Failed to authenticate to IMAP server")
		c.Logout() //nolint:errcheck
		return nil, fmt.Errorf("%w: failed to authenticate as %s: %w", ErrConnection, d.username, err)
	}

	d.logger.WithFields(logrus.Fields{
		"addr":      d.addr,
		"mechanism": d.mechanism,
	}).Debug("Connected to IMAP server")
	return newIMAPConn(c), nil
}

// session is one connection with one selected, locked folder
type session struct {
	conn   Conn
	folder string
	status *imap.MailboxStatus
}

// withSession connects, locks and selects folder, runs fn, then unlocks and
// logs out on every path. The lock is always released before logout.
func (m *Mailbox) withSession(ctx context.Context, folder string, fn func(*session) error) error {
	token, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	conn, err := m.dialer.Dial(ctx, token)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Terminate() //nolint:errcheck
	})
	defer func() {
		stop()
		if err := conn.Logout(); err != nil {
			m.logger.WithError(err).Debug("IMAP logout failed")
		}
	}()

	release, err := m.locks.acquire(ctx, folder)
	if err != nil {
		return fmt.Errorf("%w: failed to lock folder %s: %w", ErrConnection, folder, err)
	}
	defer release()

	status, err := conn.Select(folder, false)
	if err != nil {
		return m.abortErr(ctx, fmt.Errorf("%w: failed to select folder %s: %w", ErrProtocol, folder, err))
	}

	if err := fn(&session{conn: conn, folder: folder, status: status}); err != nil {
		return m.abortErr(ctx, err)
	}
	return nil
}

// abortErr reports a cancelled or timed out operation as such rather than as
// the protocol error produced by the terminated connection.
func (m *Mailbox) abortErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: operation aborted: %w", ErrConnection, ctxErr)
	}
	return err
}

// fetchSection is BODY.PEEK[], so fetching never sets \Seen
var fetchSection = &imap.BodySectionName{Peek: true}

func fetchItems() []imap.FetchItem {
	return []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, fetchSection.FetchItem()}
}

// fetch streams messages for set and hands each to fn as it arrives. After the
// first fn error the rest of the stream is drained and the error returned.
func (s *session) fetch(byUID bool, set *imap.SeqSet, fn func(*imap.Message) error) error {
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		if byUID {
			done <- s.conn.UidFetch(set, fetchItems(), messages)
		} else {
			done <- s.conn.Fetch(set, fetchItems(), messages)
		}
	}()

	var fnErr error
	for msg := range messages {
		if fnErr != nil {
			continue
		}
		fnErr = fn(msg)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("%w: failed to fetch messages from %s: %w", ErrProtocol, s.folder, err)
	}
	return fnErr
}

// fetchEmails fetches and decodes every message in set
func (s *session) fetchEmails(byUID bool, set *imap.SeqSet) ([]types.Email, error) {
	emails := []types.Email{}
	err := s.fetch(byUID, set, func(msg *imap.Message) error {
		email, err := Decode(msg)
		if err != nil {
			return err
		}
		emails = append(emails, email)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return emails, nil
}

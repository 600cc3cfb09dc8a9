package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"
)

type fakeMessage struct {
	uid   uint32
	raw   string
	flags []string
}

func (m *fakeMessage) hasFlag(flag string) bool {
	for _, f := range m.flags {
		if f == flag {
			return true
		}
	}
	return false
}

// fakeConn is an in-memory IMAP folder set behind the Conn interface
type fakeConn struct {
	mu       sync.Mutex
	folders  map[string][]*fakeMessage
	selected string

	selectErr error
	fetchErr  error
	searchErr error
	storeErr  error

	fetchCalls   int
	lastFetchSet string
	lastCriteria *imap.SearchCriteria
	expunged     bool
	uidExpunged  string
	noUIDPlus    bool
	capErr       error
	loggedOut    bool
	terminated   bool

	// onSelect runs inside Select, while the folder lock is held
	onSelect func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{folders: map[string][]*fakeMessage{}}
}

func (c *fakeConn) add(folder string, uid uint32, raw string, flags ...string) {
	c.folders[folder] = append(c.folders[folder], &fakeMessage{uid: uid, raw: raw, flags: flags})
}

func (c *fakeConn) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if c.onSelect != nil {
		c.onSelect()
	}
	if c.selectErr != nil {
		return nil, c.selectErr
	}
	msgs, ok := c.folders[name]
	if !ok {
		return nil, fmt.Errorf("NO mailbox %s does not exist", name)
	}
	c.selected = name
	status := imap.NewMailboxStatus(name, nil)
	status.Messages = uint32(len(msgs))
	return status, nil
}

func (c *fakeConn) messageLiteral(m *fakeMessage, seq uint32) *imap.Message {
	return &imap.Message{
		SeqNum: seq,
		Uid:    m.uid,
		Body: map[*imap.BodySectionName]imap.Literal{
			{}: bytes.NewBufferString(m.raw),
		},
	}
}

func (c *fakeConn) fetch(set *imap.SeqSet, ch chan *imap.Message, byUID bool) error {
	defer close(ch)
	c.fetchCalls++
	c.lastFetchSet = set.String()
	if c.fetchErr != nil {
		return c.fetchErr
	}
	for i, m := range c.folders[c.selected] {
		seq := uint32(i + 1)
		key := seq
		if byUID {
			key = m.uid
		}
		if set.Contains(key) {
			ch <- c.messageLiteral(m, seq)
		}
	}
	return nil
}

func (c *fakeConn) Fetch(set *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return c.fetch(set, ch, false)
}

func (c *fakeConn) UidFetch(set *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return c.fetch(set, ch, true)
}

func (c *fakeConn) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	c.lastCriteria = criteria
	if c.searchErr != nil {
		return nil, c.searchErr
	}

	var uids []uint32
	for _, m := range c.folders[c.selected] {
		if matches(m, criteria) {
			uids = append(uids, m.uid)
		}
	}
	return uids, nil
}

// matches understands the subset of keys BuildCriteria produces
func matches(m *fakeMessage, criteria *imap.SearchCriteria) bool {
	lower := strings.ToLower(m.raw)
	for _, flag := range criteria.WithoutFlags {
		if m.hasFlag(flag) {
			return false
		}
	}
	for _, kw := range criteria.Body {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	for _, from := range criteria.Header.Values("From") {
		var header string
		for _, line := range strings.Split(m.raw, "\n") {
			if strings.HasPrefix(strings.ToLower(line), "from:") {
				header = strings.ToLower(line)
			}
		}
		if !strings.Contains(header, strings.ToLower(from)) {
			return false
		}
	}
	return true
}

func (c *fakeConn) UidStore(set *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	if c.storeErr != nil {
		return c.storeErr
	}
	flags, _ := value.([]interface{})
	for _, m := range c.folders[c.selected] {
		if !set.Contains(m.uid) {
			continue
		}
		for _, f := range flags {
			if s, ok := f.(string); ok && !m.hasFlag(s) {
				m.flags = append(m.flags, s)
			}
		}
	}
	return nil
}

func (c *fakeConn) Expunge(ch chan uint32) error {
	c.expunged = true
	var kept []*fakeMessage
	for _, m := range c.folders[c.selected] {
		if !m.hasFlag(imap.DeletedFlag) {
			kept = append(kept, m)
		}
	}
	c.folders[c.selected] = kept
	return nil
}

func (c *fakeConn) UidExpunge(set *imap.SeqSet, ch chan uint32) error {
	c.uidExpunged = set.String()
	var kept []*fakeMessage
	for _, m := range c.folders[c.selected] {
		if !(m.hasFlag(imap.DeletedFlag) && set.Contains(m.uid)) {
			kept = append(kept, m)
		}
	}
	c.folders[c.selected] = kept
	return nil
}

func (c *fakeConn) SupportUidPlus() (bool, error) {
	return !c.noUIDPlus, c.capErr
}

func (c *fakeConn) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *fakeConn) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
	return nil
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	dials int
	token string
}

func (d *fakeDialer) Dial(ctx context.Context, token string) (Conn, error) {
	d.dials++
	d.token = token
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

type journalCall struct {
	action string
	folder string
	uids   []string
}

type fakeJournal struct {
	calls []journalCall
	err   error
}

func (j *fakeJournal) RecordRequest(ctx context.Context, action, folder string, uids []string) error {
	j.calls = append(j.calls, journalCall{action: action, folder: folder, uids: uids})
	return j.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMailbox(conn *fakeConn) (*Mailbox, *fakeDialer) {
	dialer := &fakeDialer{conn: conn}
	return NewMailbox(fakeTokens{token: "tok"}, dialer, testLogger()), dialer
}

func folderUIDs(c *fakeConn, folder string) []uint32 {
	var out []uint32
	for _, m := range c.folders[folder] {
		out = append(out, m.uid)
	}
	return out
}

func rawMessage(from, subject string, date time.Time, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	b.WriteString("To: me@example.com\r\n")
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	}
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("Message-ID: <" + subject + "@example.com>\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}

var errBoom = errors.New("boom")

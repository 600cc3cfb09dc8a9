package email

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

const (
	// DefaultFolder is used when no folder is given
	DefaultFolder = "INBOX"
	// DefaultListLimit is the number of emails List returns by default
	DefaultListLimit = 20
	// DefaultSearchLimit is the number of emails Search returns by default
	DefaultSearchLimit = 50
	// MaxLimit caps every list and search
	MaxLimit = 100
)

// Journal actions
const (
	ActionDelete   = "delete"
	ActionMarkRead = "mark_read"
)

// TokenSource returns a bearer token for the mailbox account
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Journal records destructive requests
type Journal interface {
	RecordRequest(ctx context.Context, action, folder string, uids []string) error
}

// Mailbox runs the list, read, search, delete and mark-as-read operations.
// Each call opens its own session and closes it before returning.
type Mailbox struct {
	tokens  TokenSource
	dialer  Dialer
	locks   *folderLocks
	journal Journal
	logger  *logrus.Logger
}

// NewMailbox creates a Mailbox
func NewMailbox(tokens TokenSource, dialer Dialer, logger *logrus.Logger) *Mailbox {
	return &Mailbox{
		tokens: tokens,
		dialer: dialer,
		locks:  newFolderLocks(),
		logger: logger,
	}
}

// SetJournal enables recording of delete and mark-as-read requests
func (m *Mailbox) SetJournal(j Journal) {
	m.journal = j
}

// List returns the most recent limit emails of folder, newest first
func (m *Mailbox) List(ctx context.Context, folder string, limit int) ([]types.Email, error) {
	folder = folderOrDefault(folder)
	limit = clampLimit(limit, DefaultListLimit)

	var emails []types.Email
	err := m.withSession(ctx, folder, func(s *session) error {
		total := s.status.Messages
		if total == 0 {
			emails = []types.Email{}
			return nil
		}

		// The window is by sequence number, which need not match date
		// order, so the whole window is fetched before sorting.
		from := uint32(1)
		if total > uint32(limit) {
			from = total - uint32(limit) + 1
		}
		set := new(imap.SeqSet)
		set.AddRange(from, total)

		fetched, err := s.fetchEmails(false, set)
		if err != nil {
			return err
		}
		sortByDateDesc(fetched)
		if len(fetched) > limit {
			fetched = fetched[:limit]
		}
		emails = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{"folder": folder, "count": len(emails)}).Debug("Listed emails")
	return emails, nil
}

// Read fetches one email by UID
func (m *Mailbox) Read(ctx context.Context, uid string, folder string) (*types.Email, error) {
	folder = folderOrDefault(folder)
	num, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	var email *types.Email
	err = m.withSession(ctx, folder, func(s *session) error {
		set := new(imap.SeqSet)
		set.AddNum(num)

		fetched, err := s.fetchEmails(true, set)
		if err != nil {
			return err
		}
		want := strconv.FormatUint(uint64(num), 10)
		for i := range fetched {
			if fetched[i].UID == want {
				email = &fetched[i]
				return nil
			}
		}
		return fmt.Errorf("%w: email UID %s not found in %s", ErrNotFound, want, folder)
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

// Search runs an IMAP SEARCH built from query, fetches the last limit matching
// UIDs and returns them newest first. Limiting happens on UID order before the
// date sort.
func (m *Mailbox) Search(ctx context.Context, query types.SearchQuery) ([]types.Email, error) {
	folder := folderOrDefault(query.Folder)
	limit := clampLimit(query.Limit, DefaultSearchLimit)

	criteria, err := BuildCriteria(query)
	if err != nil {
		return nil, err
	}

	var emails []types.Email
	err = m.withSession(ctx, folder, func(s *session) error {
		uids, err := s.conn.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("%w: search failed in %s: %w", ErrProtocol, folder, err)
		}
		if len(uids) == 0 {
			emails = []types.Email{}
			return nil
		}

		if len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}
		set := new(imap.SeqSet)
		set.AddNum(uids...)

		fetched, err := s.fetchEmails(true, set)
		if err != nil {
			return err
		}
		sortByDateDesc(fetched)
		emails = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{"folder": folder, "count": len(emails)}).Debug("Searched emails")
	return emails, nil
}

// Delete flags uids \Deleted and expunges them. With UIDPLUS only the given
// UIDs are expunged; without it the whole folder is. The result is the number
// of UIDs requested, not a server-confirmed count.
func (m *Mailbox) Delete(ctx context.Context, uids []string, folder string) (int, error) {
	return m.addFlag(ctx, ActionDelete, uids, folder, imap.DeletedFlag, true)
}

// MarkAsRead adds \Seen to uids. The result is the number of UIDs requested.
func (m *Mailbox) MarkAsRead(ctx context.Context, uids []string, folder string) (int, error) {
	return m.addFlag(ctx, ActionMarkRead, uids, folder, imap.SeenFlag, false)
}

func (m *Mailbox) addFlag(ctx context.Context, action string, uids []string, folder, flag string, expunge bool) (int, error) {
	folder = folderOrDefault(folder)
	if len(uids) == 0 {
		return 0, nil
	}

	set := new(imap.SeqSet)
	for _, uid := range uids {
		num, err := parseUID(uid)
		if err != nil {
			return 0, err
		}
		set.AddNum(num)
	}

	err := m.withSession(ctx, folder, func(s *session) error {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := s.conn.UidStore(set, item, []interface{}{flag}, nil); err != nil {
			return fmt.Errorf("%w: failed to store %s on %s: %w", ErrProtocol, flag, folder, err)
		}
		if expunge {
			return m.expunge(s, set)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.WithFields(logrus.Fields{
		"action": action,
		"folder": folder,
		"count":  len(uids),
	}).Info("Mailbox update requested")

	if m.journal != nil {
		if err := m.journal.RecordRequest(ctx, action, folder, uids); err != nil {
			m.logger.WithError(err).WithField("action", action).Warn("Failed to journal request")
		}
	}

	return len(uids), nil
}

// expunge removes the \Deleted messages in set. Plain EXPUNGE also removes
// messages other clients flagged, so it is used only when UIDPLUS is missing.
func (m *Mailbox) expunge(s *session, set *imap.SeqSet) error {
	uidPlus, err := s.conn.SupportUidPlus()
	if err != nil {
		return fmt.Errorf("%w: failed to read capabilities: %w", ErrProtocol, err)
	}

	if uidPlus {
		err = s.conn.UidExpunge(set, nil)
	} else {
		m.logger.WithField("folder", s.folder).Warn("Server lacks UIDPLUS, expunging the whole folder")
		err = s.conn.Expunge(nil)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to expunge %s: %w", ErrProtocol, s.folder, err)
	}
	return nil
}

// BuildCriteria translates a query into IMAP SEARCH keys; filters are ANDed.
func BuildCriteria(query types.SearchQuery) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()

	if query.Unseen {
		criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
	}
	if query.Keyword != "" {
		criteria.Body = append(criteria.Body, query.Keyword)
	}
	if query.From != "" {
		criteria.Header.Add("From", query.From)
	}
	if query.Since != "" {
		since, err := ParseQueryDate(query.Since)
		if err != nil {
			return nil, err
		}
		criteria.Since = since
	}
	if query.Before != "" {
		before, err := ParseQueryDate(query.Before)
		if err != nil {
			return nil, err
		}
		criteria.Before = before
	}

	return criteria, nil
}

var queryDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// ParseQueryDate accepts an ISO-8601 date or date-time
func ParseQueryDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range queryDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q is not ISO 8601 (e.g. 2025-01-01)", ErrInvalidArgument, value)
}

func parseUID(uid string) (uint32, error) {
	num, err := strconv.ParseUint(strings.TrimSpace(uid), 10, 32)
	if err != nil || num == 0 {
		return 0, fmt.Errorf("%w: uid %q is not a positive integer", ErrInvalidArgument, uid)
	}
	return uint32(num), nil
}

func folderOrDefault(folder string) string {
	if folder == "" {
		return DefaultFolder
	}
	return folder
}

func clampLimit(limit, defaultLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func sortByDateDesc(emails []types.Email) {
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
}

package email

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

// NoSubject replaces a missing Subject header
const NoSubject = "(no subject)"

// now is the clock used for messages without a usable date
var now = time.Now

// Decode turns a fetched message (UID, envelope and BODY[] literal) into an Email
func Decode(msg *imap.Message) (types.Email, error) {
	if msg == nil {
		return types.Email{}, fmt.Errorf("%w: nil message", ErrProtocol)
	}

	literal := msg.GetBody(fetchSection)
	if literal == nil {
		// Servers echo the section without PEEK; take whatever body came back
		for _, l := range msg.Body {
			if l != nil {
				literal = l
				break
			}
		}
	}
	if literal == nil {
		return types.Email{}, fmt.Errorf("%w: message UID %d has no body", ErrProtocol, msg.Uid)
	}

	raw, err := io.ReadAll(literal)
	if err != nil {
		return types.Email{}, fmt.Errorf("%w: failed to read message UID %d: %w", ErrProtocol, msg.Uid, err)
	}

	return DecodeRaw(msg.Uid, raw, msg.Envelope)
}

// DecodeRaw parses raw RFC 5322 bytes. The envelope (may be nil) fills in
// fields the headers lack. It performs no I/O.
func DecodeRaw(uid uint32, raw []byte, envelope *imap.Envelope) (types.Email, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return types.Email{}, fmt.Errorf("%w: failed to parse message UID %d: %w", ErrProtocol, uid, err)
	}
	if envelope == nil {
		envelope = &imap.Envelope{}
	}

	email := types.Email{
		UID:       strconv.FormatUint(uint64(uid), 10),
		MessageID: firstNonEmpty(env.GetHeader("Message-Id"), envelope.MessageId),
		Subject:   firstNonEmpty(env.GetHeader("Subject"), envelope.Subject, NoSubject),
		Date:      messageDate(env.GetHeader("Date"), envelope.Date),
		BodyText:  env.Text,
		BodyHTML:  env.HTML,
	}

	if from, _ := env.AddressList("From"); len(from) > 0 {
		email.From = from[0].Address
		email.FromName = from[0].Name
	} else if len(envelope.From) > 0 {
		email.From = envelope.From[0].Address()
		email.FromName = envelope.From[0].PersonalName
	}

	var to []string
	if list, _ := env.AddressList("To"); len(list) > 0 {
		for _, addr := range list {
			to = append(to, addr.Address)
		}
	} else {
		for _, addr := range envelope.To {
			to = append(to, addr.Address())
		}
	}
	email.To = strings.Join(to, ", ")

	return email, nil
}

// messageDate prefers the Date header, then the server's envelope date, then the clock
func messageDate(header string, envelopeDate time.Time) time.Time {
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t.UTC()
		}
	}
	if !envelopeDate.IsZero() {
		return envelopeDate.UTC()
	}
	return now().UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package auth

import (
	"errors"

	"github.com/emersion/go-sasl"
)

// XOAuth2 is the SASL mechanism name used by Outlook and Gmail IMAP
const XOAuth2 = "XOAUTH2"

type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client returns a SASL client for the XOAUTH2 mechanism, which
// go-sasl does not ship.
func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

// Start sends "user=<user>^Aauth=Bearer <token>^A^A" as the initial response
func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return XOAuth2, ir, nil
}

// Next handles the server's error challenge. Answering with an empty response
// lets the server finish the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, errors.New("xoauth2: unexpected empty challenge")
	}
	return []byte{}, nil
}

// NewSASLClient picks the SASL client for a configured mechanism name
func NewSASLClient(mechanism, username, token string) sasl.Client {
	if mechanism == sasl.OAuthBearer {
		return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: username,
			Token:    token,
		})
	}
	return NewXOAuth2Client(username, token)
}

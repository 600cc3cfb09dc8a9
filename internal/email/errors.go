package email

import "errors"

var (
	// ErrConnection covers network, TLS and authentication handshake failures
	ErrConnection = errors.New("imap connection error")
	// ErrNotFound means a requested UID does not exist in the folder
	ErrNotFound = errors.New("email not found")
	// ErrProtocol covers malformed server responses and rejected commands
	ErrProtocol = errors.New("imap protocol error")
	// ErrInvalidArgument means a caller-supplied parameter could not be used
	ErrInvalidArgument = errors.New("invalid argument")
)

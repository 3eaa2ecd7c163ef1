package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoMirrorReachable means no candidate answered a probe.
	ErrNoMirrorReachable = errors.New("no mirror reachable")
	// ErrAllMirrorsExhausted means every candidate failed the operation.
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")

	// ErrInvalidDetailsURL means the details link could not be parsed.
	ErrInvalidDetailsURL = errors.New("invalid details url")
	// ErrDetailsPageUnreachable means the details page could not be fetched.
	ErrDetailsPageUnreachable = errors.New("details page unreachable")
	// ErrInfoHashNotFound means the details page has no usable info hash.
	ErrInfoHashNotFound = errors.New("info hash not found")

	// ErrMissingTitle and ErrMissingLink are posting skip reasons.
	ErrMissingTitle = errors.New("posting has no title")
	ErrMissingLink  = errors.New("posting has no details link")
)

// NetworkError marks a transport level failure: timeouts, refused
// connections, DNS errors. Those are worth retrying on another mirror.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a response that arrived but was not 200 OK.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// IsNetwork reports whether err is a network-classified failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

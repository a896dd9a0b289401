package fcm

import (
	"context"
	"fmt"
	"net/http"
)

// Message is one outbound push delivery to a single device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Gateway abstracts the FCM authentication strategy. Open acquires
// whatever credential the variant needs and returns a Sender valid for
// one dispatch invocation — the v1 gateway re-authenticates on every
// Open, nothing is cached across invocations.
//
// Mocking this interface in tests gives full control over gateway
// behaviour without making real HTTP calls.
type Gateway interface {
	Open(ctx context.Context) (Sender, error)
}

// Sender delivers messages over an already-authenticated session.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendError is a clean per-token rejection: the gateway answered, but
// with a non-2xx status. Transport failures are ordinary wrapped errors.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("fcm rejected send: status %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether the rejection means the device token itself
// is invalid and should be deactivated, as opposed to a transient
// gateway problem.
func (e *SendError) Permanent() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusNotFound
}

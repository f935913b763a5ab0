package hook

import (
	"errors"
	"fmt"
)

// ErrSubscriber matches every SubscriberError via errors.Is.
var ErrSubscriber = errors.New("hook subscriber failed")

// SubscriberError reports one subscriber's failure during Spam.
type SubscriberError struct {
	Hook     string
	ID       ID
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("hook %s: subscriber %d: %v", e.Hook, e.ID, e.Err)
}

func (e *SubscriberError) Unwrap() error {
	return e.Err
}

// Is matches ErrSubscriber.
func (e *SubscriberError) Is(target error) bool {
	return target == ErrSubscriber
}

package messagepipeline

import (
	"errors"
	"fmt"
)

// UnprocessableError marks a message as permanently invalid: redelivering it
// would reproduce the identical failure. The pipeline logs such messages and
// Acks them so the broker discards the delivery, instead of Nacking into a
// redelivery loop. Typical causes are malformed payloads, failed validation,
// and database constraint violations.
type UnprocessableError struct {
	Err error
}

func (e *UnprocessableError) Error() string {
	return fmt.Sprintf("unprocessable message: %v", e.Err)
}

func (e *UnprocessableError) Unwrap() error {
	return e.Err
}

// AsUnprocessable wraps err so the pipeline treats the message as permanently
// invalid. A nil err returns nil.
func AsUnprocessable(err error) error {
	if err == nil {
		return nil
	}
	return &UnprocessableError{Err: err}
}

// IsUnprocessable reports whether any error in err's chain marks the message
// as permanently invalid.
func IsUnprocessable(err error) bool {
	var u *UnprocessableError
	return errors.As(err, &u)
}

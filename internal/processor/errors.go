package processor

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by task handlers
var (
	ErrInvalidPayload       = errors.New("invalid task payload")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrDecryptionFailed     = errors.New("decryption failed")
)

// invalidPayload wraps a decode or validation failure with ErrInvalidPayload,
// naming only the offending fields so payload values never reach the message.
func invalidPayload(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: invalid fields %v", ErrInvalidPayload, fields)
	}
	return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
}

func unsupported(kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrUnsupportedAlgorithm, kind, name)
}

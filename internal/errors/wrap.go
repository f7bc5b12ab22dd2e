package errors

import "fmt"

// Wrap prefixes err with msg, keeping it matchable with errors.Is.
// A nil err stays nil, so the call can wrap a return value inline:
//
//	return errors.Wrap(store.Update(ctx, f), "failed to save flow")
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted prefix.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

package check

import (
	"fmt"

	"github.com/pkg/errors"
)

func check(condition bool, msgAndArgs []interface{}, internalMsg string, internalArgs ...interface{}) error {
	if condition {
		return nil
	}
	msg := messageFromMsgAndArgs(msgAndArgs...)
	if msg == "" {
		msg = fmt.Sprintf(internalMsg, internalArgs...)
	}
	return errors.New(msg)
}

func messageFromMsgAndArgs(msgAndArgs ...interface{}) string {
	switch {
	case len(msgAndArgs) == 1:
		switch msg := msgAndArgs[0].(type) {
		case string:
			return msg
		case error:
			return msg.Error()
		default:
			return fmt.Sprintf("%+v", msg)
		}
	case len(msgAndArgs) > 1:
		return fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	}
	return ""
}

// True checks whether the condition is true. This method returns an error with
// the provided message if the check fails.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "expected condition to be true")
}

// NotEmpty checks whether the string is non-empty. This method returns an error
// with the provided message if the check fails.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(len(actual) > 0, msgAndArgs, "expected non-empty value")
}

// In checks whether the actual value is in the expected list. This method
// returns an error with the provided message if the check fails.
func In(actual string, expected []string, msgAndArgs ...interface{}) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%s not in %v", actual, expected)
}

package jvm

import "fmt"

// Exception is a thrown value.
type Exception struct {
	ClassName string
	Message   string
	Cause     error
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.ClassName
	}
	return fmt.Sprintf("%s: %s", e.ClassName, e.Message)
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

func Throw(className, message string) *Exception {
	return &Exception{ClassName: className, Message: message}
}

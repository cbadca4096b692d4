package advice

import "fmt"

// BadAdvice reports a malformed advice method, or with an empty Method, an
// advice class that could not be loaded at all.
type BadAdvice struct {
	Descriptor string
	Method     string
	Reason     string
	Err        error
}

func (e *BadAdvice) Error() string {
	where := e.Descriptor
	if e.Method != "" {
		where += "#" + e.Method
	}
	if e.Err != nil {
		return fmt.Sprintf("bad advice %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("bad advice %s: %s", where, e.Reason)
}

func (e *BadAdvice) Unwrap() error {
	return e.Err
}

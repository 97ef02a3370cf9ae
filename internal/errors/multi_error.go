package errors

import (
	"strings"
)

type MultiError struct {
	msg    string
	Errors []error
}

func NewMultiError(msg string) *MultiError {
	return &MultiError{
		msg: msg,
	}
}

func (m *MultiError) Append(err error) {
	if err == nil {
		return
	}

	var me *MultiError
	if As(err, &me) {
		m.Errors = append(m.Errors, me.Errors...)
		return
	}
	m.Errors = append(m.Errors, err)
}

func (m *MultiError) Error() string {
	var msgs []string
	for _, err := range m.Errors {
		msgs = append(msgs, err.Error())
	}
	return m.msg + ":\n " + strings.Join(msgs, "\n ")
}

func (m *MultiError) ToErr() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

package filter

import "time"

type filter struct {
	bits  uint64
	value map[Operand]any
}

func NewFilter(opts ...FilterOpt) *filter { //nolint: revive
	f := &filter{
		value: make(map[Operand]any),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Contains(operands ...Operand) bool {
	var bits uint64
	for _, operand := range operands {
		bits |= uint64(operand)
	}
	return f.bits&bits == bits
}

func (f *filter) Set(opts ...FilterOpt) {
	for _, opt := range opts {
		opt(f)
	}
}

// Unset removes the operand, used when a value is forced by the caller's scope
func (f *filter) Unset(operand Operand) {
	f.bits &^= uint64(operand)
	delete(f.value, operand)
}

func (f *filter) GetStringValue(operand Operand) string {
	v, _ := f.value[operand].(string)
	return v
}

func (f *filter) GetStringArrayValue(operand Operand) []string {
	v, _ := f.value[operand].([]string)
	return v
}

func (f *filter) GetTimeValue(operand Operand) time.Time {
	v, _ := f.value[operand].(time.Time)
	return v
}

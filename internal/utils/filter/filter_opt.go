package filter

import "time"

type (
	FilterOpt func(*filter)
	Operand   uint64
)

const (
	bitOnTenant        uint64 = 1 << 0
	bitOnZone          uint64 = 1 << 1
	bitOnStatus        uint64 = 1 << 2
	bitOnExceptionType uint64 = 1 << 3
	bitOnApplication   uint64 = 1 << 4
	bitOnQuery         uint64 = 1 << 5
	bitOnJobID         uint64 = 1 << 6
	bitOnStartDate     uint64 = 1 << 7
	bitOnEndDate       uint64 = 1 << 8
	bitOnStatuses      uint64 = 1 << 9
)

const (
	Tenant        = Operand(bitOnTenant)
	Zone          = Operand(bitOnZone)
	Status        = Operand(bitOnStatus)
	Statuses      = Operand(bitOnStatuses)
	ExceptionType = Operand(bitOnExceptionType)
	Application   = Operand(bitOnApplication)
	Query         = Operand(bitOnQuery)
	JobID         = Operand(bitOnJobID)
	StartDate     = Operand(bitOnStartDate)
	EndDate       = Operand(bitOnEndDate)
)

func WithTime(operand Operand, value time.Time) FilterOpt {
	return func(f *filter) {
		if !value.IsZero() && !value.Equal(time.Unix(0, 0)) {
			f.bits |= uint64(operand)
			f.value[operand] = value
		}
	}
}

func WithString(operand Operand, value string) FilterOpt {
	return func(f *filter) {
		if value != "" {
			f.bits |= uint64(operand)
			f.value[operand] = value
		}
	}
}

func WithStringArray(operand Operand, value []string) FilterOpt {
	return func(f *filter) {
		if len(value) > 0 {
			f.bits |= uint64(operand)
			f.value[operand] = value
		}
	}
}

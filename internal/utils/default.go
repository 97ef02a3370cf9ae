package utils

// FirstNonEmpty picks the first non zero value, flag values are passed ahead of config values
func FirstNonEmpty[T comparable](opts ...T) T {
	var zero T
	for _, opt := range opts {
		if opt != zero {
			return opt
		}
	}
	return zero
}

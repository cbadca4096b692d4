package utils

// GetNextEnum cycles forward through 0..last.
func GetNextEnum[T ~int](current, last T) T {
	if current >= last {
		return 0
	}
	return current + 1
}

// GetPrevEnum cycles backward through 0..last.
func GetPrevEnum[T ~int](current, last T) T {
	if current <= 0 {
		return last
	}
	return current - 1
}

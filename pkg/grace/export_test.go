package grace

// SetExit replaces process exit function for the duration of a test.
func SetExit(f func(code int)) (restore func()) {
	previous := exit
	exit = f
	return func() { exit = previous }
}

package errcode

// Notification error codes:
// - 0: no error
// - 4xxx: recoverable business errors (resource gone, analysis skipped)
// - 5xxx: system errors
const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
)

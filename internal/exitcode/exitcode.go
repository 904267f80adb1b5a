package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	StorageError    = 4
	RepairError     = 5
	PartialSuccess  = 6
)

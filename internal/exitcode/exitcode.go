package exitcode

const (
	Success        = 0
	UsageError     = 1
	CatalogError   = 2
	InputError     = 3
	DBConnError    = 4
	CopyError      = 5
	GroupingError  = 6
	PartialSuccess = 7
)

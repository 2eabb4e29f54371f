package ports

import "github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

// Interactor is the user-facing surface a scan reports through
type Interactor interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
	StartSpinner(message string)
	StopSpinner(success bool, message string)

	// Progress bar over the hashing phase
	StartProgress(title string, total int)
	UpdateProgress(progress types.ScanProgress)
	StopProgress()
}

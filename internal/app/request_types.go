package app

// RunRequest is the input for a manual run.
type RunRequest struct {
	// Trigger names who started the run ("cli", "api:<subject>").
	Trigger string
	// ReportPath, when set, writes the run report to this .xlsx or .pdf file.
	ReportPath string
}

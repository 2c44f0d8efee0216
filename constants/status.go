package constants

// RunStatus is the canonical status stored for rows in the runs table.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusOK      RunStatus = "OK"
	RunStatusNoData  RunStatus = "NO_DATA" // LLM returned nothing usable
	RunStatusFailed  RunStatus = "FAILED"
)

// Method records how a document's text was obtained.
type Method string

const (
	MethodPDFText Method = "pdf-text"
	MethodPDFOCR  Method = "pdf-ocr"
	MethodExcel   Method = "excel"
	MethodImage   Method = "image-ocr"
)

package gemini

import "errors"

// User-facing messages.
const (
	MsgEmptyFile         = "The selected file appears to be empty."
	MsgUnsupportedFormat = "Unsupported format or proxy error. Please try a clear photo or CSV."
	MsgScanFailed        = "Failed to analyze document"
	MsgEmptyResponse     = "The AI returned an empty response."
	MsgInvalidResponse   = "The AI response did not match the expected format."
	MsgAnalysisFailed    = "Analysis failed."
	MsgExtractionFailed  = "Text extraction failed. Ensure the PDF is not password protected."
	MsgChatFailed        = "Service paused. Please verify your request."
	MsgNotConfigured     = "AI features are not configured."
)

var ErrNotConfigured = &Error{Message: MsgNotConfigured}

// Error carries a message fit for the user next to the underlying cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(msg string, err error) *Error {
	return &Error{Message: msg, Err: err}
}

// UserMessage extracts the user-facing message of err, or "" when err does
// not come from this package.
func UserMessage(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return ""
}

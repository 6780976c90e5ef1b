package structout

import "github.com/reoring/structout/i18n"

// FeedbackFunc renders the user turn that follows a failed response.
type FeedbackFunc func(errMessage string) string

// DefaultFeedback asks the backend to correct the response, embedding the
// validation error. The text is localized through the i18n package.
func DefaultFeedback(errMessage string) string {
	return i18n.T(i18n.KeyRetryFeedback, map[string]string{"error": errMessage})
}

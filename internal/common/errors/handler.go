// internal/common/errors/handler.go
package errors

import "net/http"

// UserOutcome is the coarse result the messaging layer renders for a failed request.
type UserOutcome string

const (
	OutcomeTryAgain UserOutcome = "try_again"
	OutcomeDenied   UserOutcome = "denied"
	OutcomeApology  UserOutcome = "apology"
)

// UserMessages are the default texts for each outcome.
var UserMessages = map[UserOutcome]string{
	OutcomeTryAgain: "Could not fetch a wallpaper right now. Please try again in a moment.",
	OutcomeDenied:   "You are not allowed to do that.",
	OutcomeApology:  "Something went wrong on our side. Sorry about that.",
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorHandler converts component errors into user outcomes and logs them once.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ToUserFacing maps an error to the outcome the transport layer should show.
func ToUserFacing(err error) UserOutcome {
	switch CodeOf(err) {
	case ErrCodeAllSourcesFailed, ErrCodeSourceUnavailable, ErrCodeDownloadFailed,
		ErrCodeValidationRejected, ErrCodeStoreUnavailable:
		return OutcomeTryAgain
	case ErrCodePermissionDenied:
		return OutcomeDenied
	default:
		return OutcomeApology
	}
}

// Handle logs err and returns the outcome and message for the user.
func (h *ErrorHandler) Handle(operation string, err error) (UserOutcome, string) {
	stdErr := Normalize(err)
	outcome := ToUserFacing(stdErr)

	fields := map[string]interface{}{
		"operation": operation,
		"errorCode": string(stdErr.Code),
		"category":  GetErrorCategory(stdErr.Code),
		"retryable": stdErr.Retryable,
		"details":   stdErr.Details,
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	if outcome == OutcomeApology {
		h.logger.Error(stdErr.Message, fields)
	} else {
		h.logger.Warn(stdErr.Message, fields)
	}
	return outcome, UserMessages[outcome]
}

// HTTPStatus maps an error onto the status code the gateway API answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodePermissionDenied:
		return http.StatusForbidden
	case ErrCodeUserNotFound:
		return http.StatusNotFound
	case ErrCodeAllSourcesFailed, ErrCodeSourceUnavailable, ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeDownloadFailed, ErrCodeValidationRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

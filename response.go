package recaptcha

// ErrorIncorrectSolution is the error code reported for a wrong or incomplete answer
const ErrorIncorrectSolution = "incorrect-captcha-sol"

// Response is the outcome of a single verification attempt.
// An empty challenge or error code means the value is not available.
type Response struct {
	challenge string
	valid     bool
	errorCode string
}

// NewResponse creates a new Response
func NewResponse(challenge string, valid bool, errorCode string) Response {
	return Response{
		challenge: challenge,
		valid:     valid,
		errorCode: errorCode,
	}
}

// Challenge returns the challenge the answer was given for
func (r Response) Challenge() string {
	return r.challenge
}

// IsValid reports whether the answer was accepted
func (r Response) IsValid() bool {
	return r.valid
}

// ErrorCode returns the code to show back to the user, empty when valid
func (r Response) ErrorCode() string {
	return r.errorCode
}

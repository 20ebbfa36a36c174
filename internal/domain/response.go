package domain

import "encoding/json"

// Error codes returned in failure envelopes.
const (
	CodeValidationFailed = "validation_failed"
	CodePolicyViolation  = "policy_violation"
	CodeRateLimited      = "rate_limited"
	CodeHandlerError     = "handler_error"
	CodeNotFound         = "not_found"
)

// Response is the envelope returned for every event. Exactly one of
// Patches (ok) or Code/Message (failure) is populated.
type Response struct {
	OK           bool    `json:"ok"`
	Patches      []Patch `json:"patches,omitempty"`
	Code         string  `json:"code,omitempty"`
	Message      string  `json:"message,omitempty"`
	RetryAfterMs int64   `json:"retryAfterMs,omitempty"`
}

// Success wraps an ordered patch list. A nil list is normalized to empty.
func Success(patches []Patch) Response {
	if patches == nil {
		patches = []Patch{}
	}
	return Response{OK: true, Patches: patches}
}

// Failure builds a failure envelope.
func Failure(code, message string) Response {
	return Response{OK: false, Code: code, Message: message}
}

// MarshalJSON emits {ok, patches} on success and {ok, code, message} on
// failure, so clients never see a half-populated envelope.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.OK {
		patches := r.Patches
		if patches == nil {
			patches = []Patch{}
		}
		return json.Marshal(struct {
			OK      bool    `json:"ok"`
			Patches []Patch `json:"patches"`
		}{true, patches})
	}
	return json.Marshal(struct {
		OK           bool   `json:"ok"`
		Code         string `json:"code"`
		Message      string `json:"message"`
		RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
	}{false, r.Code, r.Message, r.RetryAfterMs})
}

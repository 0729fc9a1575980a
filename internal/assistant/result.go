package assistant

import "encoding/json"

type Kind string

const (
	KindCreateWorkflow Kind = "create_workflow"
	KindQA             Kind = "qa"
	KindHelp           Kind = "help"
	KindUnknown        Kind = "unknown"
	KindTranscript     Kind = "transcript"
	KindError          Kind = "error"
)

type Code string

const (
	CodeMissingAPIKey   Code = "missingApiKey"
	CodeAPIError        Code = "apiError"
	CodeInvalidAIJSON   Code = "invalidAiJson"
	CodeTranscribeError Code = "transcribeError"
	CodeInjectionFailed Code = "injectionFailed"
)

// Result is the typed outcome of one turn. KindCreateWorkflow always carries a
// Workflow; KindError carries a Code and a localized Message for the end user.
type Result struct {
	Kind     Kind            `json:"kind"`
	Workflow json.RawMessage `json:"workflow,omitempty"`
	Answer   string          `json:"answer,omitempty"`
	Notes    string          `json:"notes,omitempty"`
	Text     string          `json:"text,omitempty"`
	Model    string          `json:"model,omitempty"`
	Code     Code            `json:"code,omitempty"`
	Status   int             `json:"status,omitempty"`
	Detail   string          `json:"detail,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func (r Result) IsError() bool { return r.Kind == KindError }

// Reply is the text a chat transcript should show for this result.
func (r Result) Reply() string {
	switch r.Kind {
	case KindError:
		return r.Message
	case KindTranscript:
		return r.Text
	default:
		return r.Answer
	}
}

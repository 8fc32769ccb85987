package agent

// ActionType identifies a side effect detected in a reply
type ActionType string

const (
	ActionScheduleAppointment ActionType = "schedule_appointment"
	ActionTransferHuman       ActionType = "transfer_human"
	ActionSendMenu            ActionType = "send_menu"
)

// Transfer reasons recorded on the conversation
const (
	ReasonUserRequest    = "user_request"
	ReasonTechnicalError = "technical_error"
)

// Action is one side effect for the executor to apply. Actions are applied
// in the order they were produced; that order is part of the contract.
type Action struct {
	Type   ActionType `json:"type"`
	Reason string     `json:"reason,omitempty"`
}

// Response is the orchestrator's verdict for one inbound message
type Response struct {
	ShouldRespond bool                   `json:"should_respond"`
	Text          string                 `json:"text,omitempty"`
	Actions       []Action               `json:"actions,omitempty"`
	ContextPatch  map[string]interface{} `json:"context_patch,omitempty"`
	// NoActiveAgent signals that the tenant has no active configuration.
	// Callers decide how to surface it; it is not an error.
	NoActiveAgent bool `json:"no_active_agent,omitempty"`
}

package retell

type createCallRequest struct {
	FromNumber       string            `json:"from_number"`
	ToNumber         string            `json:"to_number"`
	OverrideAgentID  string            `json:"override_agent_id,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type createCallResponse struct {
	CallID     string `json:"call_id"`
	CallStatus string `json:"call_status"`
	AgentID    string `json:"agent_id"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

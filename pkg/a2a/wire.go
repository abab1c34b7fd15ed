package a2a

// Part is one piece of an A2A message. Only the "text" type is produced or
// consumed by this implementation; for other part types only the type and
// text fields are kept, and any other fields are dropped on decode.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is an A2A message: a role ("user" or "agent") plus one or more
// parts.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ExtractText concatenates every text part of m, space-joined, mirroring
// how a multi-part message collapses into the single string the chat loop
// expects.
func (m Message) ExtractText() string {
	var out string
	for i, p := range m.Parts {
		if p.Text == "" {
			continue
		}
		if i > 0 && out != "" {
			out += " "
		}
		out += p.Text
	}
	return out
}

// TaskRequest is the body of POST /a2a/agents/{id}/tasks.
type TaskRequest struct {
	ID      string  `json:"id,omitempty"`
	Message Message `json:"message"`
}

// TaskResult wraps the agent's reply once a task completes.
type TaskResult struct {
	Message Message `json:"message"`
}

// TaskResponse is the body returned by submit, poll, and cancel.
type TaskResponse struct {
	ID      string      `json:"id"`
	Status  string      `json:"status"`
	AgentID string      `json:"agent_id,omitempty"`
	Result  *TaskResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

package gmail

// MessageSummary is a search hit with its common headers resolved.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Subject  string `json:"subject,omitempty"`
	From     string `json:"from,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Message is a fully read email including its decoded text body.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Subject  string `json:"subject,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Date     string `json:"date,omitempty"`
	Body     string `json:"body"`
}

// SendResult reports the outcome of a send. Status is always "sent"
// when the API accepted the message.
type SendResult struct {
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId"`
	Status    string `json:"status"`
}

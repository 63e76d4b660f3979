package models

// InboundEvent is published to the chat.input stream for every user-submitted
// message, including the one synthetic greeting per session start. Consumed by
// the external inference worker.
type InboundEvent struct {
	UserID    string `json:"userId"`
	SocketID  string `json:"socketId"`
	Message   string `json:"message"`
	Topic     string `json:"topic"`
	IsInitial bool   `json:"isInitial"`
	Timestamp string `json:"timestamp"`
}

// QuestionEvent arrives on the chat.output stream from the inference worker.
type QuestionEvent struct {
	UserID    string `json:"userId"`
	Question  string `json:"question"`
	Timestamp string `json:"timestamp"`
}

// ScoreEvent arrives on the chat.score stream from the inference worker.
type ScoreEvent struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

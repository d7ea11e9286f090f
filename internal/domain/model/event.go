package model

import "time"

// Domain event names dispatched to external webhooks.
const (
	EventChipPaused  = "chip.paused"
	EventMessageSent = "message.sent"
)

type ChipPausedEvent struct {
	ChipID            int64  `json:"chipId"`
	ChipName          string `json:"chipName"`
	RiskScore         int    `json:"riskScore"`
	Reason            string `json:"reason"`
	MessagesSentToday int    `json:"messagesSentToday"`
	DailyLimit        int    `json:"dailyLimit"`
}

type MessageSentEvent struct {
	ChipID          int64     `json:"chipId"`
	ChipName        string    `json:"chipName"`
	RecipientNumber string    `json:"recipientNumber"`
	MessageContent  string    `json:"messageContent"`
	SentAt          time.Time `json:"sentAt"`
}

package domain

import "time"

// HistoryEntry is the immutable record of one executed command.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	ExitCode  int       `json:"exitCode"`
	Timestamp time.Time `json:"timestamp"`
	ProjectID int64     `json:"projectId"`
}

type HistoryInput struct {
	Command   string
	Output    string
	ExitCode  int
	ProjectID int64
}

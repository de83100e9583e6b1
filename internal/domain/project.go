package domain

import "time"

// Project is a workspace that commands are executed against.
type Project struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Framework string     `json:"framework"`
	LastBuild *time.Time `json:"lastBuild"`
	UserID    int64      `json:"userId"`
}

type ProjectInput struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Framework string     `json:"framework"`
	LastBuild *time.Time `json:"lastBuild,omitempty"`
	UserID    int64      `json:"userId"`
}

// QuickCommand is a canned command offered for a project.
type QuickCommand struct {
	ID          int64  `json:"id"`
	Command     string `json:"command"`
	Description string `json:"description"`
	ProjectID   int64  `json:"projectId"`
}

type QuickCommandInput struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	ProjectID   int64  `json:"projectId"`
}

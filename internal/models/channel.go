package models

import "time"

type Channel struct {
	ID          int64     `json:"id,string"`
	WorkspaceID int64     `json:"workspace_id,string"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

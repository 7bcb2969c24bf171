package project

// Project - проект на бэкенде, к нему привязана доска задач
type Project struct {
	ID            string   `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	Description   *string  `json:"description" db:"description"`
	OwnerID       string   `json:"owner_id" db:"owner_id"`
	Collaborators []string `json:"collaborators,omitempty" db:"-"`
}

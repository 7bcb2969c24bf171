package user

const Unassigned = "Unassigned"

type User struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
}

// Directory разрешает id исполнителя в отображаемое имя
type Directory map[string]string

func NewDirectory(users []User) Directory {
	dir := make(Directory, len(users))
	for _, u := range users {
		dir[u.ID] = u.Username
	}
	return dir
}

func (d Directory) DisplayName(id *string) string {
	if id == nil {
		return Unassigned
	}
	if name, ok := d[*id]; ok && name != "" {
		return name
	}
	return Unassigned
}

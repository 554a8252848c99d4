package model

// Identity names the client requesting or holding the write lock.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Machine  string `json:"machine"`
}

// Display renders the identity as "username@machine".
func (i Identity) Display() string {
	return i.Username + "@" + i.Machine
}

// User is a row in the users table. IsAdmin gates force-unlock.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	IsActive    bool   `json:"is_active"`
}

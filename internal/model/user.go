package model

type User struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Name         *string `json:"name"`
	PasswordHash string  `json:"-"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// UserView is the public shape of a user, without credentials or timestamps.
type UserView struct {
	ID    int64   `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name}
}

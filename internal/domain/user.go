package domain

type User struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"fullName"`
	Email    string `db:"email" json:"email"`
	Verified bool   `db:"verified" json:"verified"`
}

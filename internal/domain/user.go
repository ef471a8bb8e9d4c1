package domain

// UserRef is a reference to a user with denormalized display fields,
// as carried on messages and chat participant lists.
type UserRef struct {
	ID   string
	Name string
}

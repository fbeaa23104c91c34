package models

// User is the identity a verified bearer token carries. Accounts live with the
// identity provider; this service never stores them.
type User struct {
	Handle   string `json:"handle"`
	ImageURL string `json:"imageUrl"`
}

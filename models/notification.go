package models

// Notification is a phone notification mirrored on the desktop.
//
// NID is the peer-supplied identifier used for dismissal on both sides.
// ID is generated locally and only distinguishes entries that share a NID.
type Notification struct {
	ID      string `json:"id"`
	NID     string `json:"nid"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	App     string `json:"app"`
	Package string `json:"package"`
}

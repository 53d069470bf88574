package models

// Record is one client record as kept by the server. Payload is the JSON
// wire form sent by the client. Version is taken from the owner's counter
// and orders changes for pulls.
type Record struct {
	UserID     string
	Table      string
	ID         string
	Payload    []byte
	IsDeleted  bool
	ModifiedAt int64
	Version    int64
}

package models

// Ack is the remote answer for one pushed record.
type Ack struct {
	ID       string
	Accepted bool
	// RemoteModified is the canonical modification time kept by the remote.
	RemoteModified int64
	Version        int64
	Reason         string
}

// RemoteRecord is a record as delivered by a pull.
type RemoteRecord struct {
	Record         Record
	RemoteModified int64
	Version        int64
}

// PullPage is one page of changes newer than a watermark.
type PullPage struct {
	Records   []RemoteRecord
	Watermark int64
	HasMore   bool
}

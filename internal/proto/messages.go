package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type PingResponse struct {
	Status string `json:"status"`
}

// Record is the wire form of a stored record. Fields holds the domain
// fields; the rest is the sync envelope.
type Record struct {
	ID           string         `json:"id"`
	Fields       map[string]any `json:"fields"`
	IsDeleted    bool           `json:"is_deleted"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastModified int64          `json:"_last_modified"`
}

type PushRequest struct {
	Table   string   `json:"table"`
	Records []Record `json:"records"`
}

type Ack struct {
	ID             string `json:"id"`
	Accepted       bool   `json:"accepted"`
	RemoteModified int64  `json:"remote_modified"`
	Version        int64  `json:"version"`
	Reason         string `json:"reason,omitempty"`
}

type PushResponse struct {
	Acks []Ack `json:"acks"`
}

type PullRequest struct {
	Table string `json:"table"`
	Since int64  `json:"since"`
	Limit int    `json:"limit"`
}

type RemoteRecord struct {
	Record         Record `json:"record"`
	RemoteModified int64  `json:"remote_modified"`
	Version        int64  `json:"version"`
}

type PullResponse struct {
	Records   []RemoteRecord `json:"records"`
	Watermark int64          `json:"watermark"`
	HasMore   bool           `json:"has_more"`
}

var ErrEmptyMessage = errors.New("empty message")

// ToStruct encodes v through its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes s into v, which must be a pointer.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return ErrEmptyMessage
	}
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

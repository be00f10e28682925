package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// jsonCodec carries the plain Go message structs below over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return "json"
}

// PathRequest addresses a single path on behalf of a user.
type PathRequest struct {
	Path string `json:"path"`
	User string `json:"user"`
}

// ContentRequest carries file content for create and write.
type ContentRequest struct {
	Path    string `json:"path"`
	User    string `json:"user"`
	Content []byte `json:"content"`
}

// ModeRequest carries an octal permission mode.
type ModeRequest struct {
	Path string `json:"path"`
	User string `json:"user"`
	Mode uint32 `json:"mode"`
}

// UserRequest identifies the acting user only.
type UserRequest struct {
	User string `json:"user"`
}

// Empty is returned by operations without a result.
type Empty struct{}

// ReadResponse carries file content.
type ReadResponse struct {
	Content []byte `json:"content"`
}

// ListResponse carries directory child names.
type ListResponse struct {
	Names []string `json:"names"`
}

// EntryMessage is the wire form of types.EntryView.
type EntryMessage struct {
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Owner        string    `json:"user"`
	Read         bool      `json:"read"`
	Write        bool      `json:"write"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// IndexResponse carries the visible index entries.
type IndexResponse struct {
	Entries []EntryMessage `json:"entries"`
}

func entryToMessage(v types.EntryView) EntryMessage {
	return EntryMessage{
		Path:         v.Path,
		Type:         string(v.Type),
		Owner:        v.Owner,
		Read:         v.Permissions.Read,
		Write:        v.Permissions.Write,
		Size:         v.Size,
		LastModified: v.LastModified,
	}
}

func messageToEntry(m EntryMessage) types.EntryView {
	return types.EntryView{
		Entry: types.Entry{
			Path:        m.Path,
			Type:        types.EntryType(m.Type),
			Owner:       m.Owner,
			Permissions: types.Permissions{Read: m.Read, Write: m.Write},
		},
		Size:         m.Size,
		LastModified: m.LastModified,
	}
}

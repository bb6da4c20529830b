package message

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata is the per-message state handlers share. Flags are set by
// whoever queued the message; the subject handler fills in the subject
// fields.
type Metadata struct {
	IsDigest   bool `json:"isdigest,omitempty"`
	FastTrack  bool `json:"_fasttrack,omitempty"`
	NoDecorate bool `json:"nodecorate,omitempty"`

	// OriginalSubject is the raw Subject before rewriting.
	OriginalSubject string `json:"original_subject,omitempty"`
	// StrippedSubject is the Subject text without the list prefix and reply
	// markers, used by gateways that add their own decoration.
	StrippedSubject string `json:"stripped_subject,omitempty"`
	// SubjectStrategy names the rewrite strategy that was applied.
	SubjectStrategy string `json:"subject_strategy,omitempty"`
	// ParentList is the List-Id of the list a nested message came through.
	ParentList string `json:"parent_list,omitempty"`
	// PostID is the sequence number assigned to the post.
	PostID int `json:"post_id,omitempty"`
}

// Skip reports whether the message bypasses decoration handlers.
func (md *Metadata) Skip() bool {
	return md.IsDigest || md.FastTrack
}

// LoadMetadata reads metadata from a JSON file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return &md, nil
}

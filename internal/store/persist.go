package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"claimtrack/internal/model"
)

// PersistedSet is the document-identity-keyed claim mirror written next to
// the source file after every mutating store operation
type PersistedSet struct {
	Document   string        `json:"document"`
	TextSHA256 string        `json:"text_sha256"`
	Revision   uint64        `json:"revision"`
	Claims     []model.Claim `json:"claims"`
}

// MirrorPath returns the mirror file path for a document path
func MirrorPath(docPath string) string {
	return docPath + ".claims.json"
}

// TextDigest returns the hex sha256 of the document text, recorded so a
// stale mirror is detectable at load time
func TextDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// LoadMirror reads a persisted claim set. A missing file returns (nil, nil):
// the caller falls back to full extraction. A malformed file returns an
// error; the caller discards the whole set and extracts from scratch.
func LoadMirror(path string) (*PersistedSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mirror: %w", err)
	}

	var set PersistedSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse mirror: %w", err)
	}
	return &set, nil
}

// Snapshot captures the current claim set for persistence
func (s *Store) Snapshot(document string) *PersistedSet {
	return &PersistedSet{
		Document:   document,
		TextSHA256: TextDigest(s.text),
		Revision:   s.revision,
		Claims:     s.All(),
	}
}

// SaveMirror writes the claim mirror for the given document path
func (s *Store) SaveMirror(docPath string) error {
	set := s.Snapshot(docPath)

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mirror: %w", err)
	}
	if err := os.WriteFile(MirrorPath(docPath), data, 0644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

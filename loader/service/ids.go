package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"newsrag/types"

	"github.com/google/uuid"
)

type IDStrategy int

const (
	// IDDeterministic derives ids from the document and chunk position, so
	// re-ingesting a document overwrites its points.
	IDDeterministic IDStrategy = iota
	// IDRandom mints a new id per chunk on every run.
	IDRandom
)

var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://newsrag/points"))

func ParseIDStrategy(s string) (IDStrategy, error) {
	switch s {
	case "", "deterministic":
		return IDDeterministic, nil
	case "random":
		return IDRandom, nil
	}
	return 0, types.NewConfigurationError("point id strategy", fmt.Errorf("unknown strategy %q", s))
}

func (s IDStrategy) pointID(doc types.Document, seq int) uuid.UUID {
	if s == IDRandom {
		return uuid.New()
	}
	name := doc.Source + "\x00" + documentKey(doc) + "\x00" + strconv.Itoa(seq)
	return uuid.NewSHA1(pointNamespace, []byte(name))
}

// documentKey is the link when there is one, otherwise a content hash.
func documentKey(doc types.Document) string {
	if doc.Link != "" {
		return doc.Link
	}
	sum := sha256.Sum256([]byte(doc.Title + "\x00" + doc.Body))
	return hex.EncodeToString(sum[:])
}

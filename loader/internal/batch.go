package internal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"newsrag/types"
)

// ReadDocuments reads a batch file holding either a JSON array of documents
// or one JSON document per line.
func ReadDocuments(path string) ([]types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := DecodeDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

func DecodeDocuments(r io.Reader) ([]types.Document, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return []types.Document{}, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.DisallowUnknownFields()

	if first == '[' {
		var docs []types.Document
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode document array: %w", err)
		}
		return docs, nil
	}

	var docs []types.Document
	for {
		var d types.Document
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

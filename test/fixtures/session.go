package fixtures

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"

	"github.com/eliteGoblin/focusd/reelgate/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type sessionLine struct {
	Kind    string         `json:"kind"`
	Package string         `json:"package"`
	Tree    *snapshot.Node `json:"tree,omitempty"`
}

// Session builds a JSON-lines event stream.
type Session struct {
	buf bytes.Buffer
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Foreground appends a FOREGROUND_CHANGED event.
func (s *Session) Foreground(pkg string) *Session {
	return s.add(sessionLine{Kind: "FOREGROUND_CHANGED", Package: pkg})
}

// Content appends a CONTENT_CHANGED event carrying tree.
func (s *Session) Content(pkg string, tree *snapshot.Node) *Session {
	return s.add(sessionLine{Kind: "CONTENT_CHANGED", Package: pkg, Tree: tree})
}

// Raw appends a line verbatim, e.g. a malformed record.
func (s *Session) Raw(line string) *Session {
	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	return s
}

func (s *Session) add(line sessionLine) *Session {
	data, err := json.Marshal(line)
	if err != nil {
		panic(err)
	}
	s.buf.Write(data)
	s.buf.WriteByte('\n')
	return s
}

// Bytes returns the encoded stream.
func (s *Session) Bytes() []byte {
	return s.buf.Bytes()
}

package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/makian123/C-interpreter/lang/parser"
)

// Manifest is an optional sidecar describing a compiled program without
// requiring a reader to scan the FUNCS_BEGIN/FUNCS_END preamble byte by
// byte: the defined functions' signatures and the total byte length of
// the stream. cmd/clc writes one when invoked with -manifest; nothing in
// this module reads it back (the VM loader always scans the stream).
type Manifest struct {
	Signatures []string `cbor:"signatures"`
	ByteLen    int      `cbor:"byte_len"`
}

// BuildManifest derives a Manifest from a parsed program and its
// already-encoded byte stream.
func BuildManifest(prog *parser.Program, code []byte) *Manifest {
	m := &Manifest{ByteLen: len(code)}
	for _, fn := range prog.Funcs {
		if fn.Body == nil {
			continue
		}
		m.Signatures = append(m.Signatures, fn.Func.Signature())
	}
	return m
}

// Marshal encodes the manifest as CBOR.
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal manifest: %w", err)
	}
	return b, nil
}

// UnmarshalManifest decodes a CBOR-encoded Manifest.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal manifest: %w", err)
	}
	return &m, nil
}

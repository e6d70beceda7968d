// Package codec encodes feed records as loosely typed documents and decodes
// them back into the closed model.Record union, validating at the boundary.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Document is the schemaless shape stored by the persistence collaborator.
type Document = map[string]any

// encMode uses Core Deterministic Encoding: sorted keys, smallest integers,
// so the same document always produces the same bytes.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any.
var decMode cbor.DecMode

func init() { //nolint:gochecknoinits // codec modes are process-wide
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// MarshalDocument encodes a stored document.
func MarshalDocument(doc Document) ([]byte, error) {
	return encMode.Marshal(doc)
}

// UnmarshalDocument decodes a stored document.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

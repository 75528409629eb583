package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrUnknownType is returned when a record's type tag is not recognized.
var ErrUnknownType = errors.New("wire: unknown record type")

// Marshal encodes r as JSON.
func Marshal(r Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("wire: nil record")
	}
	return json.Marshal(r)
}

// Unmarshal decodes a JSON record, choosing the concrete record by its
// "type" field.
func Unmarshal(data []byte) (Record, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}

	var (
		rec Record
		err error
	)
	switch head.Type {
	case TypeMap:
		var r MapRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeGraphicsLayer:
		var r GraphicsLayerRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeGraphic:
		var r GraphicRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypePolygon:
		var r PolygonRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeSimpleFill:
		var r SimpleFillRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeSimpleLine:
		var r SimpleLineRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeText:
		var r TextRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case TypeFont:
		var r FontRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case "":
		return nil, errors.New("wire: record has no type")
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("wire: decode %s: %w", head.Type, err)
	}
	return rec, nil
}

// unmarshalOptional decodes a nested record, treating an absent field as nil.
func unmarshalOptional(raw json.RawMessage) (Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return Unmarshal(raw)
}

// ToStruct converts r into a protobuf Struct with the same field layout as
// its JSON form.
func ToStruct(r Record) (*structpb.Struct, error) {
	b, err := Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	return structpb.NewStruct(m)
}

// MarshalProto encodes r in protobuf binary form.
func MarshalProto(r Record) ([]byte, error) {
	s, err := ToStruct(r)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// UnmarshalProto decodes a record produced by MarshalProto.
func UnmarshalProto(data []byte) (Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: proto: %w", err)
	}
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("wire: proto: %w", err)
	}
	return Unmarshal(b)
}

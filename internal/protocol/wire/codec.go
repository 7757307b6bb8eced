package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	domaintypes "ledgerlink/internal/domain/types"
)

var (
	// ErrUnknownKind is returned when a frame names no known message variant.
	ErrUnknownKind = errors.New("wire: unknown message kind")
	// ErrMalformed is returned for frames or bodies that do not decode.
	ErrMalformed = errors.New("wire: malformed message")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type frame struct {
	Kind domaintypes.MessageKind `cbor:"kind"`
	Body cbor.RawMessage         `cbor:"body"`
}

// Marshal returns the canonical CBOR encoding of v.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Encode frames msg with its kind tag.
func Encode(msg domaintypes.SessionMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	body, err := encMode.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(frame{Kind: msg.Kind(), Body: body})
}

// Decode parses a frame produced by Encode.
func Decode(b []byte) (domaintypes.SessionMessage, error) {
	var f frame
	if err := decMode.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg domaintypes.SessionMessage
	switch f.Kind {
	case domaintypes.KindInitiatorHello:
		msg = new(domaintypes.InitiatorHello)
	case domaintypes.KindResponderHello:
		msg = new(domaintypes.ResponderHello)
	case domaintypes.KindInitiatorHandshake:
		msg = new(domaintypes.InitiatorHandshake)
	case domaintypes.KindResponderHandshake:
		msg = new(domaintypes.ResponderHandshake)
	case domaintypes.KindData:
		msg = new(domaintypes.DataMessage)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, f.Kind)
	}
	if err := decMode.Unmarshal(f.Body, msg); err != nil {
		return nil, fmt.Errorf("%w: %v body: %v", ErrMalformed, f.Kind, err)
	}
	return msg, nil
}

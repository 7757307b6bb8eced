package authn

import (
	"crypto/sha256"

	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/wire"
)

const transcriptLabel = "ledgerlink/handshake/v1"

// transcript is the running hash T = SHA-256(T || cbor(message)).
type transcript struct {
	h [sha256.Size]byte
}

func newTranscript() transcript {
	return transcript{h: sha256.Sum256([]byte(transcriptLabel))}
}

func (t *transcript) addEncoded(enc []byte) {
	d := sha256.New()
	d.Write(t.h[:])
	d.Write(enc)
	d.Sum(t.h[:0])
}

func (t *transcript) add(msg domaintypes.SessionMessage) error {
	enc, err := wire.Marshal(msg)
	if err != nil {
		return err
	}
	t.addEncoded(enc)
	return nil
}

func (t *transcript) sum() []byte {
	return append([]byte(nil), t.h[:]...)
}

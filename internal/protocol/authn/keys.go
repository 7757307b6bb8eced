package authn

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"ledgerlink/internal/crypto"
)

const (
	keySize = 32

	labelInitiatorFinished = "initiator finished"
	labelResponderFinished = "responder finished"
	labelSession           = "session"
	labelInitiatorToResp   = "i2r"
	labelResponderToInit   = "r2i"

	initiatorSignatureContext = "ledgerlink initiator handshake"
	responderSignatureContext = "ledgerlink responder handshake"
)

func expand(prk []byte, info string, n int) []byte {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte(info)), out); err != nil {
		// Only reachable when n exceeds 255 hash lengths.
		panic(err)
	}
	return out
}

// finishedKeys are the MAC keys both sides derive once the hellos are done.
type finishedKeys struct {
	initiator []byte
	responder []byte
}

func deriveFinishedKeys(secret, t2 []byte) finishedKeys {
	prk := hkdf.Extract(sha256.New, secret, t2)
	defer crypto.Wipe(prk)
	return finishedKeys{
		initiator: expand(prk, labelInitiatorFinished, keySize),
		responder: expand(prk, labelResponderFinished, keySize),
	}
}

func (k *finishedKeys) wipe() {
	crypto.WipeAll(k.initiator, k.responder)
	k.initiator, k.responder = nil, nil
}

func deriveSessionKey(secret, t4 []byte) []byte {
	prk := hkdf.Extract(sha256.New, secret, t4)
	defer crypto.Wipe(prk)
	return expand(prk, labelSession, keySize)
}

// directionalKey derives the traffic key for one direction and epoch.
func directionalKey(sessionKey []byte, label string, epoch uint32) []byte {
	var e [4]byte
	binary.BigEndian.PutUint32(e[:], epoch)
	return expand(sessionKey, label+string(e[:]), keySize)
}

func finishedMAC(key, transcriptHash, signature []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(transcriptHash)
	m.Write(signature)
	return m.Sum(nil)
}

func initiatorSignedData(t2, identity, keyHash []byte) []byte {
	b := make([]byte, 0, len(initiatorSignatureContext)+len(t2)+len(identity)+len(keyHash))
	b = append(b, initiatorSignatureContext...)
	b = append(b, t2...)
	b = append(b, identity...)
	return append(b, keyHash...)
}

func responderSignedData(t3 []byte) []byte {
	b := make([]byte, 0, len(responderSignatureContext)+len(t3))
	b = append(b, responderSignatureContext...)
	return append(b, t3...)
}

func negotiateSize(own, peer uint32) uint32 {
	switch {
	case own == 0:
		return peer
	case peer == 0 || own < peer:
		return own
	default:
		return peer
	}
}

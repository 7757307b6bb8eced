package authn

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.zx2c4.com/wireguard/replay"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
)

// Session is an established channel: the negotiated session key and
// transcript hash plus per-direction traffic state. It is safe for
// concurrent use.
//
// Each side sends under its own epoch. A restored session bumps its epoch so
// that sequence numbers restart under a fresh traffic key; receivers accept a
// higher epoch from the peer, reset their replay window and reject anything
// older. The receive high-water mark travels in Record, so a restored session
// also refuses everything at or below the last sequence accepted before the
// restart.
type Session struct {
	id             domaintypes.SessionID
	role           domaintypes.Role
	mode           domaintypes.Mode
	local          domaintypes.HoldingIdentity
	peer           domaintypes.HoldingIdentity
	key            []byte
	transcriptHash []byte
	maxMessageSize uint32

	mu        sync.Mutex
	epoch     uint32
	sendKey   []byte
	sendSeq   uint64
	recvEpoch uint32
	recvKey   []byte
	recvSeen  replay.Filter
	recvFloor uint64 // sequences below are refused in recvEpoch
	recvNext  uint64 // one past the highest sequence accepted in recvEpoch
	closed    bool
}

// RestoreSession rebuilds a session from a key record. Callers restoring
// after a restart must persist a record with a bumped epoch first, and must
// persist Record after every accepted data message for replays to stay
// refused across restarts.
func RestoreSession(rec domaintypes.SessionKeyRecord) (*Session, error) {
	if len(rec.SessionKey) != keySize {
		return nil, fmt.Errorf("session %s: key is %d bytes", rec.SessionID, len(rec.SessionKey))
	}
	switch rec.Role {
	case domaintypes.RoleInitiator, domaintypes.RoleResponder:
	default:
		return nil, fmt.Errorf("session %s: unknown role %v", rec.SessionID, rec.Role)
	}
	switch rec.Mode {
	case domaintypes.ModeAuthenticationOnly, domaintypes.ModeAuthenticatedEncryption:
	default:
		return nil, fmt.Errorf("session %s: unknown mode %v", rec.SessionID, rec.Mode)
	}

	s := &Session{
		id:             rec.SessionID,
		role:           rec.Role,
		mode:           rec.Mode,
		local:          rec.Local,
		peer:           rec.Peer,
		key:            append([]byte(nil), rec.SessionKey...),
		transcriptHash: append([]byte(nil), rec.TranscriptHash...),
		maxMessageSize: rec.MaxMessageSize,
		epoch:          rec.Epoch,
		recvEpoch:      rec.RecvEpoch,
		recvFloor:      rec.RecvNext,
		recvNext:       rec.RecvNext,
	}
	s.sendKey = directionalKey(s.key, s.sendLabel(), s.epoch)
	s.recvKey = directionalKey(s.key, s.recvLabel(), s.recvEpoch)
	return s, nil
}

func (s *Session) ID() domaintypes.SessionID          { return s.id }
func (s *Session) Role() domaintypes.Role             { return s.role }
func (s *Session) Mode() domaintypes.Mode             { return s.mode }
func (s *Session) Local() domaintypes.HoldingIdentity { return s.local }
func (s *Session) Peer() domaintypes.HoldingIdentity  { return s.peer }
func (s *Session) MaxMessageSize() uint32             { return s.maxMessageSize }

// SessionKey returns a copy of the negotiated session key.
func (s *Session) SessionKey() []byte { return append([]byte(nil), s.key...) }

// TranscriptHash returns a copy of the final handshake transcript hash.
func (s *Session) TranscriptHash() []byte { return append([]byte(nil), s.transcriptHash...) }

// Epoch is the epoch this side currently sends under.
func (s *Session) Epoch() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Record returns the key record a key store keeps for this session.
func (s *Session) Record() domaintypes.SessionKeyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domaintypes.SessionKeyRecord{
		SessionID:      s.id,
		Role:           s.role,
		Mode:           s.mode,
		Local:          s.local,
		Peer:           s.peer,
		SessionKey:     append([]byte(nil), s.key...),
		TranscriptHash: append([]byte(nil), s.transcriptHash...),
		Epoch:          s.epoch,
		MaxMessageSize: s.maxMessageSize,
		RecvEpoch:      s.recvEpoch,
		RecvNext:       s.recvNext,
	}
}

// Seal protects payload for the peer and assigns it the next sequence number.
func (s *Session) Seal(payload []byte) (*domaintypes.DataMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.maxMessageSize > 0 && len(payload) > int(s.maxMessageSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), s.maxMessageSize)
	}
	if s.sendSeq == math.MaxUint64 {
		return nil, errors.New("authn: sequence numbers exhausted")
	}

	seq := s.sendSeq
	s.sendSeq++
	msg := &domaintypes.DataMessage{
		Header:   domaintypes.Header{SessionID: s.id, ProtocolVersion: domaintypes.ProtocolVersion},
		Epoch:    s.epoch,
		Sequence: seq,
	}
	ad := associatedData(s.id, s.epoch, seq)
	switch s.mode {
	case domaintypes.ModeAuthenticatedEncryption:
		aead, err := chacha20poly1305.New(s.sendKey)
		if err != nil {
			return nil, err
		}
		msg.Payload = aead.Seal(nil, nonce(seq), payload, ad)
	default:
		msg.Payload = append([]byte(nil), payload...)
		msg.Tag = payloadTag(s.sendKey, ad, payload)
	}
	return msg, nil
}

// Open authenticates a data message from the peer and returns its payload.
func (s *Session) Open(msg *domaintypes.DataMessage) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if msg.Header.SessionID != s.id || msg.Header.ProtocolVersion != domaintypes.ProtocolVersion {
		return nil, fmt.Errorf("%w: header does not match session", ErrAuthenticationFailed)
	}
	if msg.Epoch < s.recvEpoch {
		return nil, fmt.Errorf("%w: epoch %d < %d", ErrReplay, msg.Epoch, s.recvEpoch)
	}
	if msg.Epoch == s.recvEpoch && msg.Sequence < s.recvFloor {
		return nil, fmt.Errorf("%w: sequence %d accepted before restore", ErrReplay, msg.Sequence)
	}

	key := s.recvKey
	if msg.Epoch != s.recvEpoch {
		key = directionalKey(s.key, s.recvLabel(), msg.Epoch)
	}
	ad := associatedData(s.id, msg.Epoch, msg.Sequence)

	var (
		payload []byte
		ok      bool
	)
	switch s.mode {
	case domaintypes.ModeAuthenticatedEncryption:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		payload, err = aead.Open(nil, nonce(msg.Sequence), msg.Payload, ad)
		ok = err == nil
	default:
		ok = hmac.Equal(msg.Tag, payloadTag(key, ad, msg.Payload))
		payload = append([]byte{}, msg.Payload...)
	}
	if !ok {
		if msg.Epoch != s.recvEpoch {
			crypto.Wipe(key)
		}
		return nil, ErrAuthenticationFailed
	}

	if msg.Epoch != s.recvEpoch {
		crypto.Wipe(s.recvKey)
		s.recvKey = key
		s.recvEpoch = msg.Epoch
		s.recvSeen.Reset()
		s.recvFloor, s.recvNext = 0, 0
	}
	if !s.recvSeen.ValidateCounter(msg.Sequence, math.MaxUint64) {
		return nil, fmt.Errorf("%w: sequence %d", ErrReplay, msg.Sequence)
	}
	if msg.Sequence >= s.recvNext {
		s.recvNext = msg.Sequence + 1
	}
	if s.maxMessageSize > 0 && len(payload) > int(s.maxMessageSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), s.maxMessageSize)
	}
	return payload, nil
}

// Destroy wipes all key material. The session rejects further use.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	crypto.WipeAll(s.key, s.sendKey, s.recvKey)
	s.closed = true
}

func (s *Session) sendLabel() string {
	if s.role == domaintypes.RoleInitiator {
		return labelInitiatorToResp
	}
	return labelResponderToInit
}

func (s *Session) recvLabel() string {
	if s.role == domaintypes.RoleInitiator {
		return labelResponderToInit
	}
	return labelInitiatorToResp
}

// nonce is four zero bytes followed by the little-endian sequence number.
func nonce(seq uint64) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(n[4:], seq)
	return n
}

func associatedData(id domaintypes.SessionID, epoch uint32, seq uint64) []byte {
	ad := make([]byte, 0, len(id)+12)
	ad = append(ad, id...)
	ad = binary.BigEndian.AppendUint32(ad, epoch)
	return binary.BigEndian.AppendUint64(ad, seq)
}

func payloadTag(key, ad, payload []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(ad)
	m.Write(payload)
	return m.Sum(nil)
}

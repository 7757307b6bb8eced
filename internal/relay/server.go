package relay

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

// DefaultMailboxLimit caps the frames held for one identity.
const DefaultMailboxLimit = 10000

// Server is an in-memory relay. All state is lost when the process exits.
type Server struct {
	mu        sync.RWMutex
	members   map[domain.HoldingIdentity]domain.MemberRecord
	mailboxes map[domain.HoldingIdentity][]domain.Envelope

	log          zerolog.Logger
	now          func() time.Time
	mailboxLimit int
}

// NewServer returns an empty relay logging to log.
func NewServer(log zerolog.Logger) *Server {
	return &Server{
		members:      make(map[domain.HoldingIdentity]domain.MemberRecord),
		mailboxes:    make(map[domain.HoldingIdentity][]domain.Envelope),
		log:          log,
		now:          time.Now,
		mailboxLimit: DefaultMailboxLimit,
	}
}

// Router returns the relay's HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.accessLog)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("OK")) }).Methods("GET")
	r.HandleFunc("/members", s.registerMember).Methods("POST")
	r.HandleFunc("/members", s.fetchMember).Methods("GET")
	r.HandleFunc("/mailbox", s.enqueue).Methods("POST")
	r.HandleFunc("/mailbox", s.fetchMailbox).Methods("GET")
	r.HandleFunc("/mailbox/ack", s.ack).Methods("POST")
	return r
}

func (s *Server) registerMember(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var rec domain.MemberRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rec.Identity.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := authn.ValidateIdentityKey(rec.PublicKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.Updated = s.now().Unix()

	s.mu.Lock()
	s.members[rec.Identity] = rec
	s.mu.Unlock()
	s.log.Info().Str("member", rec.Identity.String()).Msg("member registered")
	writeJSON(w, rec)
}

func (s *Server) fetchMember(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	rec, found := s.members[id]
	s.mu.RUnlock()
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	to, ok := identityParam(w, r)
	if !ok {
		return
	}
	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if env.To != to || env.From.Validate() != nil || len(env.Payload) == 0 {
		http.Error(w, "envelope does not match mailbox", http.StatusBadRequest)
		return
	}
	if env.Timestamp == 0 {
		env.Timestamp = s.now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, member := s.members[to]; !member {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if len(s.mailboxes[to]) >= s.mailboxLimit {
		http.Error(w, "mailbox full", http.StatusInsufficientStorage)
		return
	}
	s.mailboxes[to] = append(s.mailboxes[to], env)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) fetchMailbox(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.RLock()
	queued := s.mailboxes[id]
	if limit == 0 || limit > len(queued) {
		limit = len(queued)
	}
	out := append([]domain.Envelope{}, queued[:limit]...)
	s.mu.RUnlock()
	writeJSON(w, out)
}

func (s *Server) ack(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count < 0 {
		http.Error(w, "bad ack", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	queued := s.mailboxes[id]
	if req.Count >= len(queued) {
		delete(s.mailboxes, id)
	} else {
		s.mailboxes[id] = append([]domain.Envelope(nil), queued[req.Count:]...)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func identityParam(w http.ResponseWriter, r *http.Request) (domain.HoldingIdentity, bool) {
	q := r.URL.Query()
	id, err := domaintypes.NewHoldingIdentity(q.Get("name"), q.Get("group"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return domain.HoldingIdentity{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status and size of a response for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/store"
	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

var (
	// ErrTurnInProgress is returned when a session is already handling a message.
	ErrTurnInProgress = errors.New("turn already in progress")
	// ErrEmptyMessage is returned for blank chat input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidPatch is returned when a lead patch is malformed or fails validation.
	ErrInvalidPatch = errors.New("invalid lead patch")
)

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// Service runs coaching turns against stored sessions. Each session handles
// one turn at a time; sessions share nothing.
type Service struct {
	repo     store.Repository
	coach    *Coach
	validate *validator.Validate
	logger   *slog.Logger
	locks    sync.Map // store.SessionKey -> *sync.Mutex
}

// NewService creates a coaching service.
func NewService(repo store.Repository, c *Coach, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		coach:    c,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "coach"),
	}
}

// Coach returns the underlying coach.
func (s *Service) Coach() *Coach {
	return s.coach
}

// acquire takes the per-session lock without waiting. A mutex that was
// dropped by Forget between lookup and lock is released and looked up again.
func (s *Service) acquire(key store.SessionKey) (func(), error) {
	for {
		lock, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
		mu := lock.(*sync.Mutex)
		if !mu.TryLock() {
			return nil, ErrTurnInProgress
		}
		if current, ok := s.locks.Load(key); ok && current == lock {
			return mu.Unlock, nil
		}
		mu.Unlock()
	}
}

// Forget drops the lock entry of a session removed from the store. An entry
// held by a running turn is kept.
func (s *Service) Forget(key store.SessionKey) {
	lock, ok := s.locks.Load(key)
	if !ok {
		return
	}
	mu := lock.(*sync.Mutex)
	if !mu.TryLock() {
		return
	}
	s.locks.CompareAndDelete(key, lock)
	mu.Unlock()
}

// Session returns the stored session for key, creating and greeting a new
// one on first use. Creation never replaces a session stored concurrently.
func (s *Service) Session(ctx context.Context, key store.SessionKey) (*domain.Session, error) {
	sess, err := s.repo.GetSession(ctx, key)
	if err != nil {
		return nil, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Wrapf(err, "load session")
	}
	if sess != nil {
		return sess, nil
	}

	sess = domain.NewSession(key.OwnerID, key.SessionID)
	s.coach.Start(sess)
	created, err := s.repo.CreateSession(ctx, sess)
	if err != nil {
		return nil, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Wrapf(err, "create session")
	}
	if !created {
		stored, err := s.repo.GetSession(ctx, key)
		if err != nil {
			return nil, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Wrapf(err, "reload session")
		}
		if stored == nil {
			return nil, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Errorf("session vanished after conflicting create")
		}
		return stored, nil
	}
	s.logger.Info("session created", "owner_id", key.OwnerID, "session_id", key.SessionID, "conversation_id", sess.ConversationID)
	return sess, nil
}

// Chat applies one RM message and persists the updated session.
func (s *Service) Chat(ctx context.Context, key store.SessionKey, message string) (*domain.Session, Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, Reply{}, ErrEmptyMessage
	}
	release, err := s.acquire(key)
	if err != nil {
		s.logger.Warn("turn rejected, session busy", "owner_id", key.OwnerID, "session_id", key.SessionID)
		return nil, Reply{}, err
	}
	defer release()

	sess, err := s.Session(ctx, key)
	if err != nil {
		return nil, Reply{}, err
	}

	reply := s.coach.Respond(sess, message)
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, Reply{}, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Wrapf(err, "save session")
	}

	s.logger.Info("turn handled",
		"owner_id", key.OwnerID,
		"session_id", key.SessionID,
		"mode", reply.Mode,
		"stage", int(reply.Stage),
		"changed", reply.Changed,
	)
	return sess, reply, nil
}

// Reset replaces the session with a fresh conversation.
func (s *Service) Reset(ctx context.Context, key store.SessionKey) (*domain.Session, Reply, error) {
	return s.Chat(ctx, key, KeywordReset)
}

// Summary renders the call plan for the current session without recording a turn.
func (s *Service) Summary(ctx context.Context, key store.SessionKey) (*domain.Session, Reply, error) {
	sess, err := s.Session(ctx, key)
	if err != nil {
		return nil, Reply{}, err
	}
	return sess, s.coach.SummaryOf(sess), nil
}

// PatchLead applies an RFC 7396 merge patch to the session's lead. This is the
// RM's explicit correction path; extraction itself never overwrites a field.
func (s *Service) PatchLead(ctx context.Context, key store.SessionKey, patch []byte) (*domain.Session, error) {
	release, err := s.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.Session(ctx, key)
	if err != nil {
		return nil, err
	}

	original, err := sonic.Marshal(sess.Lead)
	if err != nil {
		return nil, oops.In("coach").Wrapf(err, "encode lead")
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	var lead domain.Lead
	if err := strictJSON.Unmarshal(merged, &lead); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	if err := s.validate.Struct(lead); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	sess.Lead = lead
	sess.Touch()
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, oops.In("coach").With("owner_id", key.OwnerID, "session_id", key.SessionID).Wrapf(err, "save session")
	}
	s.logger.Info("lead patched", "owner_id", key.OwnerID, "session_id", key.SessionID, "fields", lead.KnownFields())
	return sess, nil
}

package debate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
	"github.com/zhouzirui/debate-arena/backend/internal/service/provider"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrInvalidConfig       = errors.New("invalid session configuration")
	ErrEmptyIntervention   = errors.New("intervention content is required")
)

// costPerToken is the fixed linear token-to-cost formula. Per-model pricing
// is deliberately not wired in.
const costPerToken = 0.000002

// consensusMinTranscript guards against spurious early termination: the
// consensus marker is only honored once the transcript holds more entries
// than this.
const consensusMinTranscript = 5

// CompletionClient is the slice of the provider client the coordinator
// depends on.
type CompletionClient interface {
	Complete(ctx context.Context, modelID string, system string, messages []provider.ChatMessage) (provider.Completion, error)
}

// Service coordinates every live debate session: it drives the paced turn
// loop, applies completion results to session state and exposes the manual
// controls. At most one turn per session is ever in flight.
type Service struct {
	mu        sync.Mutex
	sessions  map[string]*session
	client    CompletionClient
	tickDelay time.Duration
}

// session is the single shared state object of one debate. All fields are
// guarded by the service mutex.
type session struct {
	id          string
	cfg         model.Config
	status      model.Status
	round       int
	transcript  []model.Message
	totalTokens int
	totalCost   float64
	awaitingID  string
	lastError   string
	semiAuto    bool
	startedAt   *time.Time
	createdAt   time.Time

	// inFlight blocks overlapping ticks while a provider call is pending.
	inFlight bool
	// gen invalidates in-flight results across reset/restart boundaries.
	gen int
	// timer is the pending paced-tick task; invalidated whenever the
	// session leaves the running state.
	timer *time.Timer

	subs map[chan Event]struct{}
}

// NewService builds the coordinator. tickDelay paces automatic turn-taking.
func NewService(client CompletionClient, tickDelay time.Duration) *Service {
	return &Service{
		sessions:  make(map[string]*session),
		client:    client,
		tickDelay: tickDelay,
	}
}

// Create registers a new idle session for the given configuration.
func (s *Service) Create(cfg model.Config) (model.Session, error) {
	if err := validateConfig(&cfg); err != nil {
		return model.Session{}, err
	}

	sess := &session{
		id:        uuid.NewString(),
		cfg:       cfg,
		status:    model.StatusIdle,
		createdAt: time.Now().UTC(),
		subs:      make(map[chan Event]struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	snap := sess.snapshot()
	s.mu.Unlock()

	log.Printf("[debate] created session %s topic=%q participants=%d rounds=%d", sess.id, cfg.Topic, len(cfg.Participants), cfg.RoundLimit)
	return snap, nil
}

func validateConfig(cfg *model.Config) error {
	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}
	if cfg.RoundLimit < 1 {
		return fmt.Errorf("%w: round limit must be at least 1", ErrInvalidConfig)
	}
	if len(cfg.Participants) < 2 {
		return fmt.Errorf("%w: at least two participants are required", ErrInvalidConfig)
	}

	moderators := 0
	seen := make(map[string]struct{}, len(cfg.Participants))
	for i := range cfg.Participants {
		p := &cfg.Participants[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate participant id %q", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = struct{}{}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: participant %q has no name", ErrInvalidConfig, p.ID)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("%w: participant %q has no model", ErrInvalidConfig, p.ID)
		}
		if p.Role == "" {
			p.Role = model.RoleParticipant
		}
		if p.Role == model.RoleModerator {
			moderators++
		}
	}
	if moderators != 1 {
		return fmt.Errorf("%w: exactly one moderator is required", ErrInvalidConfig)
	}
	if cfg.Participants[0].Role != model.RoleModerator {
		return fmt.Errorf("%w: the moderator must be the first participant", ErrInvalidConfig)
	}
	return nil
}

// Get returns a snapshot of one session.
func (s *Service) Get(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// List returns snapshots of all known sessions.
func (s *Service) List() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.snapshot())
	}
	return out
}

// Start moves a session into the running state and kicks the turn loop.
// It doubles as resume and as retry-after-error: any recorded error is
// cleared and the pending speaker is re-attempted.
func (s *Service) Start(id string) (model.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return model.Session{}, ErrSessionNotFound
	}
	if sess.status == model.StatusCompleted {
		snap := sess.snapshot()
		s.mu.Unlock()
		return snap, ErrSessionCompleted
	}
	if sess.status == model.StatusRunning {
		snap := sess.snapshot()
		s.mu.Unlock()
		return snap, nil
	}

	sess.status = model.StatusRunning
	sess.lastError = ""
	sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status, Round: sess.round})
	snap := sess.snapshot()
	s.mu.Unlock()

	go s.tick(id)
	return snap, nil
}

// Pause suspends automatic turn-taking. A pending paced tick is cancelled;
// an in-flight provider call is not aborted but its result is still applied.
func (s *Service) Pause(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.status == model.StatusRunning {
		sess.status = model.StatusPaused
		sess.stopTimer()
		sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status, Round: sess.round})
	}
	return sess.snapshot(), nil
}

// Intervene appends an out-of-band operator message. It never changes whose
// turn is next or the round counter, but is part of the context sent on
// subsequent turns.
func (s *Service) Intervene(id, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyIntervention
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Message{}, ErrSessionNotFound
	}

	msg := model.Message{
		ID:            uuid.NewString(),
		ParticipantID: model.InterventionAuthor,
		Content:       content,
		Kind:          model.KindIntervention,
		Round:         sess.round,
		CreatedAt:     time.Now().UTC(),
	}
	sess.transcript = append(sess.transcript, msg)
	sess.publish(Event{Type: EventMessage, SessionID: sess.id, Status: sess.status, Round: sess.round, Message: &msg})

	// The pacing delay runs from the latest transcript change, so a pending
	// tick is re-armed rather than left on its old deadline.
	if sess.status == model.StatusRunning && !sess.inFlight {
		s.schedule(sess)
	}
	return msg, nil
}

// ChangeModel rebinds a participant's model and resumes the session, the
// standard recovery path after a failing model.
func (s *Service) ChangeModel(id, participantID, modelID, modelName string) (model.Session, error) {
	if strings.TrimSpace(modelID) == "" {
		return model.Session{}, fmt.Errorf("%w: model id is required", ErrInvalidConfig)
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return model.Session{}, ErrSessionNotFound
	}
	if sess.status == model.StatusCompleted {
		snap := sess.snapshot()
		s.mu.Unlock()
		return snap, ErrSessionCompleted
	}

	found := false
	for i := range sess.cfg.Participants {
		if sess.cfg.Participants[i].ID == participantID {
			sess.cfg.Participants[i].Model = modelID
			sess.cfg.Participants[i].ModelName = modelName
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return model.Session{}, ErrParticipantNotFound
	}
	s.mu.Unlock()

	return s.Start(id)
}

// ToggleSemiAuto flips the pause-after-every-message mode.
func (s *Service) ToggleSemiAuto(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	sess.semiAuto = !sess.semiAuto
	return sess.snapshot(), nil
}

// Reset discards all conversation state and returns the session to idle,
// keeping its configuration.
func (s *Service) Reset(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	sess.reset()
	sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status})
	return sess.snapshot(), nil
}

// Restart replaces the session configuration and resets conversation state.
func (s *Service) Restart(id string, cfg model.Config) (model.Session, error) {
	if err := validateConfig(&cfg); err != nil {
		return model.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	sess.cfg = cfg
	sess.reset()
	sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status})
	return sess.snapshot(), nil
}

// Remove deletes a session and closes all its subscriber channels.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.stopTimer()
	for ch := range sess.subs {
		close(ch)
	}
	sess.subs = nil
	delete(s.sessions, id)
	return nil
}

// Subscribe registers a listener for session events. The returned cancel
// func must be called when the listener goes away. Slow listeners miss
// events rather than blocking the coordinator.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan Event, 16)
	sess.subs[ch] = struct{}{}

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sess.subs == nil {
			return
		}
		if _, ok := sess.subs[ch]; ok {
			delete(sess.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// tick runs one scheduling cycle: plan the turn, assemble the context, call
// the provider and apply the result. It is a no-op unless the session is
// running with no turn already in flight.
func (s *Service) tick(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.status != model.StatusRunning || sess.inFlight {
		s.mu.Unlock()
		return
	}
	sess.timer = nil

	plan := PlanTurn(sess.cfg.Participants, sess.transcript, sess.round, sess.cfg.RoundLimit)
	if plan.Terminate {
		log.Printf("[debate] session %s reached round limit %d", sess.id, sess.cfg.RoundLimit)
		sess.complete()
		s.mu.Unlock()
		return
	}

	speaker := sess.cfg.Participants[plan.Next]
	if sess.startedAt == nil {
		now := time.Now().UTC()
		sess.startedAt = &now
	}
	sess.awaitingID = speaker.ID
	sess.lastError = ""
	sess.inFlight = true

	cfg := sess.cfg
	transcript := append([]model.Message(nil), sess.transcript...)
	priorLen := len(sess.transcript)
	gen := sess.gen
	s.mu.Unlock()

	blocks, system := BuildContext(cfg, transcript, speaker)
	completion, err := s.client.Complete(context.Background(), speaker.Model, system, blocks)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok = s.sessions[id]
	if !ok {
		return
	}
	if sess.gen != gen {
		// The session was reset or reconfigured while the call was in
		// flight; the stale result belongs to a conversation that no
		// longer exists.
		return
	}
	sess.inFlight = false

	if err != nil {
		// No partial message, no round advance: the same speaker is
		// re-attempted on the next manual start.
		sess.status = model.StatusPaused
		sess.lastError = fmt.Sprintf("%s failed to respond: %v", speaker.Name, err)
		sess.stopTimer()
		log.Printf("[debate] session %s turn failed: %s", sess.id, sess.lastError)
		sess.publish(Event{Type: EventError, SessionID: sess.id, Status: sess.status, Round: sess.round, Error: sess.lastError})
		return
	}

	text := completion.Text
	consensus := false
	if cfg.AutoFinish && priorLen > consensusMinTranscript && strings.Contains(text, consensusMarker) {
		text = strings.TrimSpace(strings.ReplaceAll(text, consensusMarker, ""))
		consensus = true
	}

	kind := model.KindText
	if speaker.Role == model.RoleModerator {
		kind = model.KindSummary
	}
	cost := float64(completion.Tokens) * costPerToken
	msg := model.Message{
		ID:            uuid.NewString(),
		ParticipantID: speaker.ID,
		Content:       text,
		Kind:          kind,
		Round:         plan.Round,
		Tokens:        completion.Tokens,
		Cost:          cost,
		CreatedAt:     time.Now().UTC(),
	}
	sess.transcript = append(sess.transcript, msg)
	sess.round = plan.Round
	sess.totalTokens += completion.Tokens
	sess.totalCost += cost
	sess.awaitingID = ""
	sess.publish(Event{Type: EventMessage, SessionID: sess.id, Status: sess.status, Round: sess.round, Message: &msg})

	if consensus {
		log.Printf("[debate] session %s closed by moderator consensus in round %d", sess.id, sess.round)
		sess.complete()
		return
	}

	if sess.status != model.StatusRunning {
		// Paused while the call was in flight. The result above is still
		// applied, but no further turn is scheduled.
		return
	}

	if sess.semiAuto {
		sess.status = model.StatusPaused
		sess.stopTimer()
		sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status, Round: sess.round})
		return
	}

	s.schedule(sess)
}

// schedule arms the paced-tick task. Callers hold the service mutex.
func (s *Service) schedule(sess *session) {
	sess.stopTimer()
	id := sess.id
	sess.timer = time.AfterFunc(s.tickDelay, func() { s.tick(id) })
}

func (sess *session) stopTimer() {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
}

func (sess *session) complete() {
	sess.status = model.StatusCompleted
	sess.awaitingID = ""
	sess.stopTimer()
	sess.publish(Event{Type: EventStatus, SessionID: sess.id, Status: sess.status, Round: sess.round})
}

func (sess *session) reset() {
	sess.stopTimer()
	sess.gen++
	sess.status = model.StatusIdle
	sess.round = 0
	sess.transcript = nil
	sess.totalTokens = 0
	sess.totalCost = 0
	sess.awaitingID = ""
	sess.lastError = ""
	sess.startedAt = nil
	sess.inFlight = false
}

func (sess *session) publish(ev Event) {
	for ch := range sess.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (sess *session) snapshot() model.Session {
	snap := model.Session{
		ID:           sess.id,
		Topic:        sess.cfg.Topic,
		RoundLimit:   sess.cfg.RoundLimit,
		AutoFinish:   sess.cfg.AutoFinish,
		Participants: append([]model.Participant(nil), sess.cfg.Participants...),
		Status:       sess.status,
		Round:        sess.round,
		Transcript:   append([]model.Message(nil), sess.transcript...),
		TotalTokens:  sess.totalTokens,
		TotalCost:    sess.totalCost,
		AwaitingID:   sess.awaitingID,
		LastError:    sess.lastError,
		SemiAuto:     sess.semiAuto,
		CreatedAt:    sess.createdAt,
	}
	if sess.startedAt != nil {
		started := *sess.startedAt
		snap.StartedAt = &started
	}
	return snap
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardtalk/api/apperrors"
	"cardtalk/api/logger"
	"cardtalk/api/metrics"
	"cardtalk/api/models"
)

type Interaction struct {
	QuestionID string
	Action     models.Action
	SessionID  string
	UserID     string
	IPAddress  string
}

// Recorder validates player interactions and hands them to Counters. It does
// not deduplicate: repeated calls are counted again.
type Recorder struct {
	questions QuestionRepository
	counters  *Counters
	audit     InteractionLog
	log       *logger.Logger
	now       func() time.Time
}

// NewRecorder builds a Recorder. audit may be nil, which disables the audit trail.
func NewRecorder(questions QuestionRepository, counters *Counters, audit InteractionLog, log *logger.Logger) *Recorder {
	return &Recorder{
		questions: questions,
		counters:  counters,
		audit:     audit,
		log:       log.With("service", "Recorder"),
		now:       time.Now,
	}
}

func (r *Recorder) Record(ctx context.Context, in Interaction) error {
	in.QuestionID = strings.TrimSpace(in.QuestionID)
	if in.QuestionID == "" || in.Action == "" {
		return apperrors.InvalidArgument("questionId and action are required")
	}
	if !in.Action.Valid() {
		return apperrors.InvalidArgument("action must be 'view' or 'skip'")
	}
	if _, err := r.questions.Get(ctx, in.QuestionID); err != nil {
		return err
	}

	q, err := r.counters.Apply(ctx, in.QuestionID, in.Action)
	if err != nil {
		return err
	}

	if in.SessionID == "" || r.audit == nil {
		return nil
	}
	event := models.InteractionEvent{
		EventID:    uuid.NewString(),
		QuestionID: q.ID,
		CategoryID: q.CategoryID,
		Action:     in.Action,
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		IPAddress:  in.IPAddress,
		Timestamp:  r.now().UTC(),
	}
	if err := r.audit.InsertInteractions(ctx, []models.InteractionEvent{event}); err != nil {
		metrics.InteractionAuditFailures.Inc()
		r.log.Warn("interaction audit dropped", "question_id", q.ID, "session_id", in.SessionID, "error", err)
	}
	return nil
}

package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"intervox/internal/domain"
)

const defaultListLimit = 20

// Store persists interview records and live-session presence markers in
// Firestore. The backend feedback pipeline writes to the same interview
// documents, so updates always merge partial fields.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given GCP project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) interviewsCol() *firestore.CollectionRef {
	return s.client.Collection("interviews")
}

func (s *Store) interviewDocRef(id string) *firestore.DocumentRef {
	return s.interviewsCol().Doc(id)
}

func (s *Store) liveSessionDocRef(userID string) *firestore.DocumentRef {
	return s.client.Collection("liveSessions").Doc(userID)
}

type interviewDoc struct {
	UserID      string           `firestore:"userId"`
	JobRole     string           `firestore:"jobRole"`
	CallID      string           `firestore:"callId"`
	AccessToken string           `firestore:"accessToken,omitempty"`
	StartedAt   time.Time        `firestore:"startedAt"`
	EndedAt     *time.Time       `firestore:"endedAt,omitempty"`
	Duration    int              `firestore:"duration"`
	Status      string           `firestore:"status"`
	EndReason   string           `firestore:"endReason,omitempty"`
	Transcript  string           `firestore:"transcript,omitempty"`
	Feedback    *scoredReviewDoc `firestore:"feedback,omitempty"`
}

type scoredReviewDoc struct {
	Score        int      `firestore:"score"`
	Summary      string   `firestore:"summary"`
	Strengths    []string `firestore:"strengths,omitempty"`
	Improvements []string `firestore:"improvements,omitempty"`
}

type liveSessionDoc struct {
	Active    bool      `firestore:"active"`
	CallID    string    `firestore:"callId"`
	JobRole   string    `firestore:"jobRole"`
	StartedAt time.Time `firestore:"startedAt"`
}

func (s *Store) Create(ctx context.Context, session *domain.InterviewSession) error {
	doc := interviewDoc{
		UserID:      session.UserID,
		JobRole:     session.JobRole,
		CallID:      session.CallID,
		AccessToken: session.AccessToken,
		StartedAt:   session.StartedAt,
		EndedAt:     session.EndedAt,
		Duration:    session.Duration,
		Status:      string(session.Status),
		EndReason:   string(session.EndReason),
	}

	_, err := s.interviewDocRef(session.ID).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore Create: %w", err)
	}
	return nil
}

// Update merges the given fields into an interview document, leaving
// everything else (notably transcript and feedback, written by the backend
// pipeline) untouched.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	_, err := s.interviewDocRef(id).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore Update: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.InterviewSession, error) {
	snap, err := s.interviewDocRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc interviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}

	return sessionFromDoc(snap.Ref.ID, doc), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.InterviewSession, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := s.interviewsCol().
		Where("userId", "==", userID).
		OrderBy("startedAt", firestore.Desc).
		Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.InterviewSession
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListByUser: %w", err)
		}

		var doc interviewDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode interviewDoc: %w", err)
		}
		out = append(out, sessionFromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.interviewDocRef(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("firestore Delete: %w", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, userID string, presence domain.LiveSessionPresence) error {
	doc := liveSessionDoc{
		Active:    presence.Active,
		CallID:    presence.CallID,
		JobRole:   presence.JobRole,
		StartedAt: presence.StartedAt,
	}

	_, err := s.liveSessionDocRef(userID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore presence Set: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, userID string) error {
	_, err := s.liveSessionDocRef(userID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("firestore presence Remove: %w", err)
	}
	return nil
}

func sessionFromDoc(id string, doc interviewDoc) *domain.InterviewSession {
	session := &domain.InterviewSession{
		ID:          id,
		UserID:      doc.UserID,
		JobRole:     doc.JobRole,
		CallID:      doc.CallID,
		AccessToken: doc.AccessToken,
		StartedAt:   doc.StartedAt,
		EndedAt:     doc.EndedAt,
		Duration:    doc.Duration,
		Status:      domain.RecordStatus(doc.Status),
		EndReason:   domain.EndReason(doc.EndReason),
		Transcript:  doc.Transcript,
	}
	if doc.Feedback != nil {
		session.Feedback = &domain.ScoredReview{
			Score:        doc.Feedback.Score,
			Summary:      doc.Feedback.Summary,
			Strengths:    doc.Feedback.Strengths,
			Improvements: doc.Feedback.Improvements,
		}
	}
	return session
}

package memory

import (
	"context"
	"sync"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// SubmissionArchive is an in-memory implementation of storage.SubmissionArchive.
type SubmissionArchive struct {
	mu   sync.RWMutex
	data []*domain.Submission
}

// NewSubmissionArchive creates a new in-memory submission archive.
func NewSubmissionArchive() *SubmissionArchive {
	return &SubmissionArchive{}
}

// Record appends a confirmed submission.
func (a *SubmissionArchive) Record(_ context.Context, s *domain.Submission) error {
	if s == nil || s.TransactionHash == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec := *s
	rec.Prices = append([]string(nil), s.Prices...)
	a.data = append(a.data, &rec)
	return nil
}

// All returns archived submissions in insertion order.
func (a *SubmissionArchive) All() []*domain.Submission {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]*domain.Submission, len(a.data))
	copy(result, a.data)
	return result
}

var _ storage.SubmissionArchive = (*SubmissionArchive)(nil)

package workflow

import (
	"errors"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They model the conditional
// UPDATE the claim queue relies on and validate the intended ownership
// semantics:
// - a contended solicitud has exactly one winner
// - the winner's retry is idempotent
// - everyone else is told the claim is already taken, never an error that
//   invites a blind retry
//
// Full DB integration coverage lives in the lifecycle test behind
// INTEGRATION_TESTS=1.

type fakeClaimStore struct {
	mu     sync.Mutex
	status map[uint64]models.SolicitudEstado
	holder map[uint64]string
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{
		status: map[uint64]models.SolicitudEstado{},
		holder: map[uint64]string{},
	}
}

// claim mirrors the CAS: one conditional write, then a re-read to classify
// the zero-rows case.
func (s *fakeClaimStore) claim(solicitudId uint64, plannerId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, exists := s.status[solicitudId]
	if !exists {
		return utils.ErrorRecordNotFound
	}
	if status == models.SolicitudEstadoAprobada && s.holder[solicitudId] == "" {
		s.status[solicitudId] = models.SolicitudEstadoEnTratamiento
		s.holder[solicitudId] = plannerId
		return nil
	}
	if s.holder[solicitudId] == plannerId {
		return nil
	}
	if s.holder[solicitudId] != "" {
		return utils.ErrorAlreadyClaimed
	}
	return utils.ErrorInvalidTransition
}

func (s *fakeClaimStore) release(solicitudId uint64, plannerId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.status[solicitudId]; !exists {
		return utils.ErrorRecordNotFound
	}
	if s.holder[solicitudId] != plannerId {
		return utils.ErrorNotOwner
	}
	s.status[solicitudId] = models.SolicitudEstadoAprobada
	s.holder[solicitudId] = ""
	return nil
}

func TestClaim_ContendedSolicitudHasExactlyOneWinner(t *testing.T) {
	store := newFakeClaimStore()
	store.status[1] = models.SolicitudEstadoAprobada

	const planners = 16
	results := make([]error, planners)
	var wg sync.WaitGroup
	for i := 0; i < planners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.claim(1, string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, utils.ErrorAlreadyClaimed):
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestClaim_RepeatByHolderIsIdempotent(t *testing.T) {
	store := newFakeClaimStore()
	store.status[7] = models.SolicitudEstadoAprobada

	if err := store.claim(7, "p1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.claim(7, "p1"); err != nil {
			t.Fatalf("repeat claim %d: %v", i, err)
		}
	}
	if err := store.claim(7, "p2"); !errors.Is(err, utils.ErrorAlreadyClaimed) {
		t.Fatalf("expected already-claimed for p2, got %v", err)
	}
}

func TestClaim_WrongStatusIsInvalidTransition(t *testing.T) {
	store := newFakeClaimStore()
	store.status[3] = models.SolicitudEstadoDraft

	if err := store.claim(3, "p1"); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition for draft, got %v", err)
	}
}

func TestClaim_MissingSolicitudIsNotFound(t *testing.T) {
	store := newFakeClaimStore()
	if err := store.claim(99, "p1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRelease_ReturnsClaimToThePool(t *testing.T) {
	store := newFakeClaimStore()
	store.status[5] = models.SolicitudEstadoAprobada

	if err := store.claim(5, "p1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.release(5, "p2"); !errors.Is(err, utils.ErrorNotOwner) {
		t.Fatalf("expected not-owner for p2 release, got %v", err)
	}
	if err := store.release(5, "p1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := store.claim(5, "p2"); err != nil {
		t.Fatalf("expected p2 to claim after release, got %v", err)
	}
}

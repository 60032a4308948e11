package job

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/farmhand/marketplace/internal/logging"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/validate"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (n *recordingNotifier) Notify(userID string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]Event)
	}
	n.events[userID] = append(n.events[userID], ev)
}

func (n *recordingNotifier) For(userID string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[userID]
}

func newTestService() (*Service, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewService(NewStore(profile.NewMemoryStore()), n, logging.Discard()), n
}

func TestService_CreateJobValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	data := sampleData()
	data.Title = ""
	data.PayRate = 0
	_, err := svc.CreateJob(ctx, "farmer-1", data)
	if !validate.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	data = sampleData()
	data.StartDate = "next week"
	if _, err := svc.CreateJob(ctx, "farmer-1", data); !validate.IsValidation(err) {
		t.Errorf("expected bad start_date to fail, got %v", err)
	}

	data.StartDate = "2025-07-01"
	if _, err := svc.CreateJob(ctx, "farmer-1", data); err != nil {
		t.Errorf("create job: %v", err)
	}
}

func TestService_ApplyNotifiesFarmer(t *testing.T) {
	svc, n := newTestService()
	ctx := context.Background()
	j, _ := svc.CreateJob(ctx, "farmer-1", sampleData())

	a, err := svc.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{Message: "ready"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	events := n.For("farmer-1")
	if len(events) != 1 {
		t.Fatalf("expected one event for farmer, got %d", len(events))
	}
	if events[0].Type != EventApplicationReceived || events[0].ApplicationID != a.ID {
		t.Errorf("unexpected event %+v", events[0])
	}

	bad := -5.0
	if _, err := svc.ApplyForJob(ctx, j.ID, "lab-2", ApplicationData{ProposedRate: &bad}); !validate.IsValidation(err) {
		t.Errorf("expected negative rate to fail validation, got %v", err)
	}
}

func TestService_UpdateApplicationStatus(t *testing.T) {
	svc, n := newTestService()
	ctx := context.Background()
	j, _ := svc.CreateJob(ctx, "farmer-1", sampleData())
	a, _ := svc.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{})

	if _, err := svc.UpdateApplicationStatus(ctx, "farmer-1", a.ID, ApplicationPending); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateApplicationStatus(ctx, "farmer-2", a.ID, ApplicationAccepted); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}

	got, err := svc.UpdateApplicationStatus(ctx, "farmer-1", a.ID, ApplicationAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != ApplicationAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}
	if events := n.For("lab-1"); len(events) != 1 || events[0].Status != "accepted" {
		t.Errorf("expected labourer notified of acceptance, got %+v", events)
	}

	if _, err := svc.UpdateApplicationStatus(ctx, "farmer-1", a.ID, ApplicationRejected); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_JobStatusAndDelete(t *testing.T) {
	svc, n := newTestService()
	ctx := context.Background()
	j, _ := svc.CreateJob(ctx, "farmer-1", sampleData())
	svc.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{})

	if _, err := svc.UpdateJobStatus(ctx, "farmer-1", j.ID, "paused"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateJobStatus(ctx, "farmer-2", j.ID, StatusCancelled); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}

	// any status may follow any other
	for _, st := range []Status{StatusCompleted, StatusOpen, StatusInProgress} {
		got, err := svc.UpdateJobStatus(ctx, "farmer-1", j.ID, st)
		if err != nil {
			t.Fatalf("update to %s: %v", st, err)
		}
		if got.Status != st {
			t.Errorf("expected %s, got %s", st, got.Status)
		}
	}
	if events := n.For("lab-1"); len(events) != 3 {
		t.Errorf("expected 3 job events for applicant, got %d", len(events))
	}

	if _, err := svc.ApplyForJob(ctx, j.ID, "lab-2", ApplicationData{}); !errors.Is(err, ErrJobNotOpen) {
		t.Errorf("expected ErrJobNotOpen, got %v", err)
	}

	if err := svc.DeleteJob(ctx, "farmer-2", j.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.DeleteJob(ctx, "farmer-1", j.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, j.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected job gone, got %v", err)
	}
}

func TestService_ApplicationsForJobRequiresOwner(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	j, _ := svc.CreateJob(ctx, "farmer-1", sampleData())
	svc.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{})

	if _, err := svc.ApplicationsForJob(ctx, "farmer-2", j.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	apps, err := svc.ApplicationsForJob(ctx, "farmer-1", j.ID)
	if err != nil || len(apps) != 1 {
		t.Errorf("expected one application, got %d (%v)", len(apps), err)
	}
}

func TestService_ListJobsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ListJobs(context.Background(), Filter{Status: "archived"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

// readBarrier holds GetApplication callers until n of them have read, so
// competing decisions all see the application as pending.
type readBarrier struct {
	JobStore
	arrived sync.WaitGroup
}

func (b *readBarrier) GetApplication(ctx context.Context, id string) (*Application, error) {
	a, err := b.JobStore.GetApplication(ctx, id)
	b.arrived.Done()
	b.arrived.Wait()
	return a, err
}

func TestService_ConcurrentDecisionsOnlyOneWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, store JobStore) {
		ctx := context.Background()
		j, _ := store.CreateJob(ctx, "farmer-1", sampleData())
		a, _ := store.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{})

		barrier := &readBarrier{JobStore: store}
		barrier.arrived.Add(2)
		n := &recordingNotifier{}
		svc := NewService(barrier, n, logging.Discard())

		decisions := []ApplicationStatus{ApplicationAccepted, ApplicationRejected}
		errs := make([]error, len(decisions))
		var wg sync.WaitGroup
		for i, status := range decisions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.UpdateApplicationStatus(ctx, "farmer-1", a.ID, status)
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case !errors.Is(err, ErrInvalidTransition):
				t.Errorf("expected ErrInvalidTransition for the losing decision, got %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one decision to succeed, got %d (errs %v)", wins, errs)
		}
		if events := n.For("lab-1"); len(events) != 1 {
			t.Errorf("expected one notification, got %+v", events)
		}
	})
}

package participants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/qrcode"
)

func ada() Profile {
	return Profile{FirstName: " Ada ", LastName: "Lovelace", Email: " Ada@Example.COM "}
}

func TestRegisterNormalisesAndIssuesTicket(t *testing.T) {
	f := newFixture(true)
	res, err := f.registry.Register(context.Background(), ada())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p := res.Participant
	if p.FirstName != "Ada" || p.Email != "ada@example.com" {
		t.Fatalf("profile not normalised: %+v", p)
	}
	if p.Used || p.UsedAt != nil {
		t.Fatal("new participant must be unused")
	}
	if p.TicketUUID == uuid.Nil {
		t.Fatal("ticket uuid not assigned")
	}
	if len(res.Advisories) != 0 {
		t.Fatalf("unexpected advisories %v", res.Advisories)
	}
	if string(res.QRPNG) != "png:"+qrcode.Payload(p.TicketUUID) {
		t.Fatalf("qr payload mismatch: %q", res.QRPNG)
	}
	if p.QRKey == nil || *p.QRKey != "qr_codes/"+p.TicketUUID.String()+".png" {
		t.Fatalf("qr key not recorded: %v", p.QRKey)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].emailType != models.EmailTypeInvitation {
		t.Fatalf("invitation not scheduled: %+v", f.notifier.sent)
	}
}

func TestRegisterTicketsAreUnique(t *testing.T) {
	f := newFixture(true)
	seen := map[uuid.UUID]bool{}
	for i := 0; i < 50; i++ {
		res, err := f.registry.Register(context.Background(), Profile{FirstName: "P", Email: uuid.NewString() + "@example.com"})
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if seen[res.Participant.TicketUUID] {
			t.Fatalf("duplicate ticket %s", res.Participant.TicketUUID)
		}
		seen[res.Participant.TicketUUID] = true
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(true)
	if _, err := f.registry.Register(context.Background(), ada()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	dup := ada()
	dup.Email = "ADA@example.com"
	_, err := f.registry.Register(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if f.store.count() != 1 {
		t.Fatalf("duplicate created a record: %d", f.store.count())
	}
}

func TestRegisterRejectedWhenGateClosed(t *testing.T) {
	f := newFixture(false)
	_, err := f.registry.Register(context.Background(), ada())
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("want ErrRegistrationClosed, got %v", err)
	}
	if f.store.count() != 0 {
		t.Fatal("closed gate created a record")
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(true)
	_, err := f.registry.Register(context.Background(), Profile{FirstName: "  ", Email: "not-an-email"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatal("validation error should unwrap to ErrInvalidProfile")
	}
	if verr.Fields["first_name"] == "" || verr.Fields["email"] == "" {
		t.Fatalf("missing field messages: %v", verr.Fields)
	}
}

func TestRegisterRetriesTicketCollision(t *testing.T) {
	f := newFixture(true)
	f.store.failCreate = []error{ErrTicketCollision, ErrTicketCollision}
	if _, err := f.registry.Register(context.Background(), ada()); err != nil {
		t.Fatalf("register after collisions: %v", err)
	}

	f = newFixture(true)
	f.store.failCreate = []error{ErrTicketCollision, ErrTicketCollision, ErrTicketCollision}
	if _, err := f.registry.Register(context.Background(), ada()); !errors.Is(err, ErrTicketCollision) {
		t.Fatalf("want ErrTicketCollision after exhausting attempts, got %v", err)
	}
}

func TestRegisterEnrichmentFailuresAreAdvisory(t *testing.T) {
	f := newFixture(true)
	f.artifacts.putErr = errBoom
	f.notifier.err = errBoom
	res, err := f.registry.Register(context.Background(), ada())
	if err != nil {
		t.Fatalf("register must succeed despite enrichment failures: %v", err)
	}
	stages := map[string]bool{}
	for _, a := range res.Advisories {
		stages[a.Stage] = true
	}
	if !stages[StageArtifact] || !stages[StageNotification] {
		t.Fatalf("missing advisories: %v", res.Advisories)
	}
	if res.QRPNG == nil {
		t.Fatal("qr image should still be returned when storing it fails")
	}

	f = newFixture(true)
	f.registry.codec = stubCodec{err: qrcode.ErrEmptyPayload}
	res, err = f.registry.Register(context.Background(), ada())
	if err != nil {
		t.Fatalf("register with failing codec: %v", err)
	}
	if len(res.Advisories) != 1 || res.Advisories[0].Stage != StageCodec {
		t.Fatalf("want codec advisory, got %v", res.Advisories)
	}
	if res.Participant.QRKey != nil {
		t.Fatal("no qr key expected when encoding failed")
	}
}

func TestVerifyUnknownTicket(t *testing.T) {
	f := newFixture(true)
	for _, ticket := range []string{uuid.NewString(), "ticket:" + uuid.NewString(), "garbage"} {
		for _, mark := range []bool{false, true} {
			res, err := f.registry.Verify(context.Background(), ticket, mark)
			if err != nil {
				t.Fatalf("verify %q: %v", ticket, err)
			}
			if res.Status != StatusNotFound {
				t.Fatalf("verify %q mark=%v: want not found, got %s", ticket, mark, res.Status)
			}
		}
	}
	if _, err := f.registry.Verify(context.Background(), "  ", true); !errors.Is(err, ErrTicketRequired) {
		t.Fatalf("want ErrTicketRequired, got %v", err)
	}
}

func TestVerifySequential(t *testing.T) {
	f := newFixture(true)
	clock := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	f.registry.SetClock(func() time.Time { return clock })
	res, err := f.registry.Register(context.Background(), ada())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ticket := res.Participant.TicketUUID.String()

	peek, err := f.registry.Verify(context.Background(), ticket, false)
	if err != nil || peek.Status != StatusValid || peek.Participant.Used {
		t.Fatalf("peek: %+v %v", peek, err)
	}

	clock = clock.Add(time.Hour)
	first, err := f.registry.Verify(context.Background(), "ticket:"+ticket, true)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if first.Status != StatusValid || !first.Redeemed || first.Participant.UsedAt == nil {
		t.Fatalf("first verify: %+v", first)
	}

	clock = clock.Add(time.Minute)
	second, err := f.registry.Verify(context.Background(), ticket, true)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if second.Status != StatusAlreadyUsed || second.Redeemed {
		t.Fatalf("second verify: %+v", second)
	}
	if !second.Participant.UsedAt.Equal(*first.Participant.UsedAt) {
		t.Fatalf("used_at changed: %v vs %v", second.Participant.UsedAt, first.Participant.UsedAt)
	}
	if second.Participant.UsedAt.Before(second.Participant.CreatedAt) {
		t.Fatal("used_at before created_at")
	}

	if len(f.publisher.events) != 2 ||
		f.publisher.events[0].Outcome != models.CheckinAdmitted ||
		f.publisher.events[1].Outcome != models.CheckinRejected {
		t.Fatalf("unexpected feed events %+v", f.publisher.events)
	}
}

func TestVerifyConcurrentRedeemsOnce(t *testing.T) {
	f := newFixture(true)
	res, err := f.registry.Register(context.Background(), ada())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ticket := res.Participant.TicketUUID.String()

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	valid, used := 0, 0
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			r, err := f.registry.Verify(context.Background(), ticket, true)
			if err != nil {
				t.Errorf("verify: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch r.Status {
			case StatusValid:
				valid++
			case StatusAlreadyUsed:
				used++
			}
		}()
	}
	close(start)
	wg.Wait()
	if valid != 1 || used != callers-1 {
		t.Fatalf("want exactly one valid, got valid=%d already_used=%d", valid, used)
	}
}

func TestToggleRegistration(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	g, err := f.registry.ToggleRegistration(ctx, nil)
	if err != nil || g.IsOpen {
		t.Fatalf("implicit toggle should close: %+v %v", g, err)
	}
	g, _ = f.registry.ToggleRegistration(ctx, nil)
	if !g.IsOpen {
		t.Fatal("second implicit toggle should reopen")
	}
	open := true
	g, _ = f.registry.ToggleRegistration(ctx, &open)
	if !g.IsOpen {
		t.Fatal("explicit true on open gate must stay open")
	}
	closed := false
	g, _ = f.registry.ToggleRegistration(ctx, &closed)
	if g.IsOpen {
		t.Fatal("explicit false must close")
	}
	g, _ = f.registry.ToggleRegistration(ctx, &closed)
	if g.IsOpen {
		t.Fatal("explicit false on closed gate must stay closed")
	}
	state, err := f.registry.GateState(ctx)
	if err != nil || state.IsOpen {
		t.Fatalf("gate state: %+v %v", state, err)
	}
}

func TestUpdateKeepsTicketAndRedemption(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	res, _ := f.registry.Register(ctx, ada())
	other, _ := f.registry.Register(ctx, Profile{FirstName: "Grace", Email: "grace@example.com"})
	if _, err := f.registry.Verify(ctx, res.Participant.TicketUUID.String(), true); err != nil {
		t.Fatalf("verify: %v", err)
	}

	upd := ada()
	upd.Organization = "Analytical Engines"
	p, _, err := f.registry.Update(ctx, res.Participant.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.TicketUUID != res.Participant.TicketUUID || !p.Used || p.Organization != "Analytical Engines" {
		t.Fatalf("unexpected updated participant %+v", p)
	}

	clash := ada()
	clash.Email = other.Participant.Email
	if _, _, err := f.registry.Update(ctx, res.Participant.ID, clash); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if _, _, err := f.registry.Update(ctx, 999, ada()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesArtifact(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	res, _ := f.registry.Register(ctx, ada())
	if len(f.artifacts.objects) != 1 {
		t.Fatalf("expected stored qr, got %d objects", len(f.artifacts.objects))
	}
	if err := f.registry.Delete(ctx, res.Participant.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.artifacts.objects) != 0 {
		t.Fatal("qr artifact not removed")
	}
	if err := f.registry.Delete(ctx, res.Participant.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestQRImageRestoresMissingArtifact(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	res, _ := f.registry.Register(ctx, ada())
	for k := range f.artifacts.objects {
		delete(f.artifacts.objects, k)
	}
	png, err := f.registry.QRImage(ctx, res.Participant)
	if err != nil {
		t.Fatalf("qr image: %v", err)
	}
	if string(png) != "png:"+qrcode.Payload(res.Participant.TicketUUID) {
		t.Fatalf("unexpected png %q", png)
	}
	if len(f.artifacts.objects) != 1 {
		t.Fatal("missing artifact was not stored again")
	}
}

func TestResend(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	res, _ := f.registry.Register(ctx, ada())
	if _, err := f.registry.Resend(ctx, res.Participant.ID); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("want 2 invitations, got %d", len(f.notifier.sent))
	}

	f.registry.notifier = nil
	if _, err := f.registry.Resend(ctx, res.Participant.ID); !errors.Is(err, ErrNotifierDisabled) {
		t.Fatalf("want ErrNotifierDisabled, got %v", err)
	}
}

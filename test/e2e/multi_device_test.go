//go:build e2e

package e2e

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hyperengineering/liftlog/internal/config"
	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/types"
)

// TestMultiDevice_Convergence logs on one device and reads the result on another.
func TestMultiDevice_Convergence(t *testing.T) {
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)
	laptop := newDevice(t, srv, clock)

	signIn(t, phone, "user-1")
	logAndDrain(t, phone, "squat 100kg 5x5")
	logAndDrain(t, phone, "pullups 10, dips 12")

	pushed := mustPush(t, phone)
	if len(pushed.Sessions) != 1 {
		t.Errorf("pushed sessions = %d, want 1", len(pushed.Sessions))
	}
	if len(pushed.Entries) != 3 {
		t.Errorf("pushed entries = %d, want 3", len(pushed.Entries))
	}
	if got := srv.count("entries"); got != 3 {
		t.Errorf("remote entries = %d, want 3", got)
	}

	signIn(t, laptop, "user-1")
	pulled := mustPull(t, laptop)
	if pulled.Sessions != 1 || pulled.Entries != 3 {
		t.Errorf("pulled = %+v, want 1 session and 3 entries", pulled)
	}
	if pulled.Cursor == nil || !pulled.Cursor.Equal(t0) {
		t.Errorf("cursor = %v, want %v", pulled.Cursor, t0)
	}

	want := allEntries(t, phone)
	got := allEntries(t, laptop)
	if len(got) != len(want) {
		t.Fatalf("laptop has %d entries, want %d", len(got), len(want))
	}
	for id, w := range want {
		g, ok := got[id]
		if !ok {
			t.Errorf("entry %s missing on laptop", id)
			continue
		}
		if !g.Synced {
			t.Errorf("entry %s should arrive synced", id)
		}
		if !sameWeight(g.Weight, w.Weight) || g.Unit != w.Unit || g.SessionID != w.SessionID {
			t.Errorf("entry %s = %+v, want %+v", id, g, w)
		}
	}

	exercises, err := laptop.Exercises(context.Background())
	if err != nil {
		t.Fatalf("Exercises: %v", err)
	}
	known := make(map[string]bool, len(exercises))
	for _, ex := range exercises {
		known[ex.ID] = true
	}
	for id, e := range got {
		if !known[e.ExerciseID] {
			t.Errorf("entry %s points at exercise %s unknown to the laptop", id, e.ExerciseID)
		}
	}

	// A second pull with nothing new is a no-op.
	clock.Advance(time.Minute)
	again := mustPull(t, laptop)
	if again.Merged() != 0 {
		t.Errorf("second pull merged %d records, want 0", again.Merged())
	}
}

// TestMultiDevice_LastWriteWins edits the same entry on two devices.
func TestMultiDevice_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)
	laptop := newDevice(t, srv, clock)

	signIn(t, phone, "user-1")
	signIn(t, laptop, "user-1")
	logAndDrain(t, phone, "squat 100kg 5x5")
	mustPush(t, phone)
	mustPull(t, laptop)

	var entryID string
	for id := range allEntries(t, laptop) {
		entryID = id
	}
	if entryID == "" {
		t.Fatal("laptop did not receive the entry")
	}

	clock.Advance(2 * time.Minute)
	if _, err := phone.Entries().Update(ctx, entryID, types.EntryPatch{Weight: types.Value(110.0)}); err != nil {
		t.Fatalf("phone update: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := laptop.Entries().Update(ctx, entryID, types.EntryPatch{Weight: types.Value(120.0)}); err != nil {
		t.Fatalf("laptop update: %v", err)
	}

	mustPush(t, phone)
	mustPush(t, laptop)
	mustPull(t, phone)
	mustPull(t, laptop)

	for _, dev := range []struct {
		name    string
		entries map[string]types.Entry
	}{
		{"phone", allEntries(t, phone)},
		{"laptop", allEntries(t, laptop)},
	} {
		e, ok := dev.entries[entryID]
		if !ok {
			t.Fatalf("%s lost entry %s", dev.name, entryID)
		}
		if e.Weight == nil || *e.Weight != 120 {
			t.Errorf("%s weight = %v, want 120", dev.name, e.Weight)
		}
		if !e.UpdatedAt.Equal(t0.Add(3 * time.Minute)) {
			t.Errorf("%s updated_at = %v, want %v", dev.name, e.UpdatedAt, t0.Add(3*time.Minute))
		}
	}
}

// TestMultiDevice_DeleteReachesRemote removes an entry and checks the remote copy.
func TestMultiDevice_DeleteReachesRemote(t *testing.T) {
	ctx := context.Background()
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)

	signIn(t, phone, "user-1")
	logAndDrain(t, phone, "bench 80kg 8x3")
	pushed := mustPush(t, phone)
	if len(pushed.Entries) != 1 {
		t.Fatalf("pushed entries = %d, want 1", len(pushed.Entries))
	}
	id := pushed.Entries[0]
	if srv.row("entries", id) == nil {
		t.Fatal("entry not on remote after push")
	}

	if err := phone.Entries().Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if srv.row("entries", id) != nil {
		t.Error("entry still on remote after delete")
	}
	if _, ok := allEntries(t, phone)[id]; ok {
		t.Error("entry still present locally after delete")
	}
}

// TestMultiDevice_DeleteWhileOffline deletes an entry during an outage and
// checks the next push sends the delete.
func TestMultiDevice_DeleteWhileOffline(t *testing.T) {
	ctx := context.Background()
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)

	signIn(t, phone, "user-1")
	logAndDrain(t, phone, "bench 80kg 8x3")
	id := mustPush(t, phone).Entries[0]

	srv.failWith(http.StatusServiceUnavailable)
	if err := phone.Entries().Delete(ctx, id); err != nil {
		t.Fatalf("Delete while offline: %v", err)
	}
	if srv.row("entries", id) == nil {
		t.Fatal("remote changed during the outage")
	}

	srv.failWith(0)
	pushed := mustPush(t, phone)
	if len(pushed.Deleted) != 1 || pushed.Deleted[0] != id {
		t.Errorf("deleted = %v, want [%s]", pushed.Deleted, id)
	}
	if srv.row("entries", id) != nil {
		t.Error("entry still on remote after reconnect")
	}
}

// TestMultiDevice_SessionDeleteReachesRemote deletes a whole session and
// checks a stale edit from another device does not resurrect it.
func TestMultiDevice_SessionDeleteReachesRemote(t *testing.T) {
	ctx := context.Background()
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)
	laptop := newDevice(t, srv, clock)

	signIn(t, phone, "user-1")
	signIn(t, laptop, "user-1")
	logAndDrain(t, phone, "pullups 10, dips 12")
	pushed := mustPush(t, phone)
	sessionID := pushed.Sessions[0]
	mustPull(t, laptop)

	clock.Advance(time.Minute)
	if _, err := phone.Sessions().DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	res := mustPush(t, phone)
	if len(res.Deleted) != 3 {
		t.Errorf("deleted = %v, want 2 entries and the session", res.Deleted)
	}
	if srv.count("sessions") != 0 || srv.count("entries") != 0 {
		t.Errorf("remote rows = %d sessions, %d entries, want none", srv.count("sessions"), srv.count("entries"))
	}

	// The laptop still holds the session and edits one of its entries.
	clock.Advance(time.Minute)
	entryID := pushed.Entries[0]
	if _, err := laptop.Entries().Update(ctx, entryID, types.EntryPatch{Reps: types.Value(11)}); err != nil {
		t.Fatalf("Update on laptop: %v", err)
	}
	mustPush(t, laptop)

	clock.Advance(time.Minute)
	pulled := mustPull(t, phone)
	if pulled.Entries != 0 || pulled.Skipped == 0 {
		t.Errorf("phone pulled %+v, want the orphaned entry skipped", pulled)
	}
	if n := len(allEntries(t, phone)); n != 0 {
		t.Errorf("phone has %d entries after deleting their session", n)
	}
}

// TestMultiDevice_OfflineRecordsClaimedOnSignIn logs before sign-in and checks
// the records reach the remote under the new user.
func TestMultiDevice_OfflineRecordsClaimedOnSignIn(t *testing.T) {
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock)

	logAndDrain(t, phone, "squat 100kg 5x5")
	if res := mustPush(t, phone); !res.Empty() {
		t.Errorf("push before sign-in = %+v, want empty", res)
	}
	if got := srv.count("entries"); got != 0 {
		t.Fatalf("remote entries before sign-in = %d, want 0", got)
	}
	for id, e := range allEntries(t, phone) {
		if e.UserID != "" {
			t.Errorf("entry %s owned by %q before sign-in", id, e.UserID)
		}
	}

	clock.Advance(time.Minute)
	signIn(t, phone, "user-7")
	for id, e := range allEntries(t, phone) {
		if e.UserID != "user-7" {
			t.Errorf("entry %s user = %q, want user-7", id, e.UserID)
		}
	}

	pushed := mustPush(t, phone)
	if len(pushed.Sessions) != 1 || len(pushed.Entries) != 1 {
		t.Fatalf("pushed = %+v, want 1 session and 1 entry", pushed)
	}
	if row := srv.row("sessions", pushed.Sessions[0]); row == nil || row["user_id"] != "user-7" {
		t.Errorf("remote session = %v, want user_id user-7", row)
	}
	if row := srv.row("entries", pushed.Entries[0]); row == nil || row["user_id"] != "user-7" {
		t.Errorf("remote entry = %v, want user_id user-7", row)
	}
}

// TestMultiDevice_RejectedCredentials keeps records dirty when the remote
// refuses the request.
func TestMultiDevice_RejectedCredentials(t *testing.T) {
	ctx := context.Background()
	srv := newFakeRemote(t)
	clock := newTestClock()
	phone := newDevice(t, srv, clock, func(cfg *config.Config) {
		cfg.Remote.APIKey = "wrong-key"
	})

	signIn(t, phone, "user-1")
	logAndDrain(t, phone, "squat 100kg 5x5")

	_, err := phone.Push(ctx)
	if !errors.Is(err, remote.ErrUnauthorized) {
		t.Fatalf("Push error = %v, want ErrUnauthorized", err)
	}
	if _, err := phone.Pull(ctx); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("Pull error = %v, want ErrUnauthorized", err)
	}

	status, err := phone.Status(ctx, "e2e")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Stats.DirtySessions != 1 || status.Stats.DirtyEntries != 1 {
		t.Errorf("dirty = %d sessions, %d entries; want 1 and 1",
			status.Stats.DirtySessions, status.Stats.DirtyEntries)
	}
	if status.LastPull != nil {
		t.Errorf("last pull = %v, want nil after a failed pull", status.LastPull)
	}
}

func sameWeight(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

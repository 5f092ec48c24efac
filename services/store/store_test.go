package store

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveTestSession(t *testing.T, s *Store, id string) *Session {
	t.Helper()

	sess := &Session{
		ID:        id,
		UserID:    "user-1",
		Filename:  "meeting.wav",
		SizeBytes: 2 << 20,
		Status:    StatusQueued,
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return sess
}

func TestUpdateStatusMonotonicProgress(t *testing.T) {
	s := openTestStore(t)
	saveTestSession(t, s, "s1")

	steps := []struct {
		status   string
		progress int
		want     int
	}{
		{StatusProcessing, 10, 10},
		{StatusProcessing, 40, 40},
		{StatusProcessing, 25, 40}, // jittery backend, never goes backwards
		{StatusCompleted, 0, 100},  // terminal always lands on 100
	}

	for _, step := range steps {
		if err := s.UpdateStatus("s1", step.status, step.progress, ""); err != nil {
			t.Fatalf("update status: %v", err)
		}
		sess, err := s.GetSession("s1")
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if sess.Progress != step.want {
			t.Errorf("after %s/%d: progress = %d, want %d",
				step.status, step.progress, sess.Progress, step.want)
		}
	}
}

func TestResetSessionClearsState(t *testing.T) {
	s := openTestStore(t)
	saveTestSession(t, s, "s1")

	if err := s.UpdateStatus("s1", StatusCompleted, 100, "done"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := s.AttachResults("s1", []byte(`{"segments":[]}`)); err != nil {
		t.Fatalf("attach results: %v", err)
	}
	if err := s.SaveAnalysis(&AnalysisResult{SessionID: "s1", PromptKey: "summary", Response: "x", Model: "llama3"}); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	if _, err := s.AppendChat("s1", "user", "hello"); err != nil {
		t.Fatalf("append chat: %v", err)
	}

	if err := s.ResetSession("s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	sess, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != "" || sess.Progress != 0 || sess.Message != "" || sess.HasResults() {
		t.Errorf("session not reset: %+v", sess)
	}
	if _, err := s.GetAnalysis("s1", "summary"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected analyses cleared, got err = %v", err)
	}
	msgs, err := s.ListChat("s1")
	if err != nil {
		t.Fatalf("list chat: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected chat cleared, got %d messages", len(msgs))
	}
}

func TestToggleUploadOption(t *testing.T) {
	s := openTestStore(t)

	before, err := s.ListUploadOptions()
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	if len(before) == 0 {
		t.Fatal("expected seeded options")
	}

	target := before[1]
	if err := s.ToggleUploadOption(target.Kind, target.Key); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	after, err := s.ListUploadOptions()
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("option count changed: %d -> %d", len(before), len(after))
	}

	for i := range after {
		if after[i].Kind != before[i].Kind || after[i].Key != before[i].Key {
			t.Fatalf("order changed at %d: %+v vs %+v", i, before[i], after[i])
		}
		wantEnabled := before[i].Enabled
		if i == 1 {
			wantEnabled = !wantEnabled
		}
		if after[i].Enabled != wantEnabled {
			t.Errorf("option %s/%s enabled = %v, want %v",
				after[i].Kind, after[i].Key, after[i].Enabled, wantEnabled)
		}
	}

	if err := s.ToggleUploadOption("structure", "no_such_key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound toggling unknown key, got %v", err)
	}
}

func TestAnalysisCacheOverwrite(t *testing.T) {
	s := openTestStore(t)
	saveTestSession(t, s, "s1")

	first := &AnalysisResult{SessionID: "s1", PromptKey: "summary", Response: "v1", Model: "llama3", ProcessingTime: 1.5}
	if err := s.SaveAnalysis(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := &AnalysisResult{SessionID: "s1", PromptKey: "summary", Response: "v2", Model: "llama3", ProcessingTime: 2.0}
	if err := s.SaveAnalysis(second); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := s.GetAnalysis("s1", "summary")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Response != "v2" {
		t.Errorf("expected overwrite, got %q", got.Response)
	}

	all, err := s.ListAnalyses("s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected single cached entry, got %d", len(all))
	}
}

func TestAuthSessionRevocation(t *testing.T) {
	s := openTestStore(t)

	u := &User{ID: "u1", Username: "ada", Email: "ada@example.com", Role: "user"}
	if err := s.UpsertUser(u); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	as := &AuthSession{ID: "as1", UserID: u.ID, AccessJTI: "jti-a", RefreshJTI: "jti-r"}
	if err := s.CreateAuthSession(as); err != nil {
		t.Fatalf("create auth session: %v", err)
	}

	for _, jti := range []string{"jti-a", "jti-r"} {
		revoked, err := s.JTIRevoked(jti)
		if err != nil {
			t.Fatalf("jti check: %v", err)
		}
		if revoked {
			t.Errorf("fresh jti %s reported revoked", jti)
		}
	}

	if revoked, _ := s.JTIRevoked("never-issued"); !revoked {
		t.Error("unknown jti should count as revoked")
	}

	if err := s.RevokeAuthSession(u.ID, "as1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := s.JTIRevoked("jti-r"); !revoked {
		t.Error("revoked session's jti still accepted")
	}

	active, err := s.ListAuthSessions(u.ID)
	if err != nil {
		t.Fatalf("list auth sessions: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active sessions, got %d", len(active))
	}
}

func TestUpsertUserKeepsIdentity(t *testing.T) {
	s := openTestStore(t)

	first := &User{ID: "u1", Username: "ada", Email: "ada@example.com", Role: "user"}
	if err := s.UpsertUser(first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := &User{ID: "u2", Username: "ada.l", Email: "ada@example.com", Role: "admin"}
	if err := s.UpsertUser(second); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.ID != "u1" {
		t.Errorf("expected stable user id u1, got %s", second.ID)
	}

	got, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.LoginCount != 2 || got.Role != "admin" || got.Username != "ada.l" {
		t.Errorf("unexpected user after upsert: %+v", got)
	}
}

func TestRotateAccessJTI(t *testing.T) {
	s := openTestStore(t)

	u := &User{ID: "u1", Username: "ada", Email: "ada@example.com", Role: "user"}
	if err := s.UpsertUser(u); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	as := &AuthSession{ID: "as1", UserID: u.ID, AccessJTI: "jti-a1", RefreshJTI: "jti-r"}
	if err := s.CreateAuthSession(as); err != nil {
		t.Fatalf("create auth session: %v", err)
	}

	if err := s.RotateAccessJTI("jti-r", "jti-a2"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if revoked, _ := s.JTIRevoked("jti-a2"); revoked {
		t.Error("rotated-in access jti reported revoked")
	}
	// The replaced jti is no longer bound to any session.
	if revoked, _ := s.JTIRevoked("jti-a1"); !revoked {
		t.Error("replaced access jti still accepted")
	}

	if err := s.RevokeAuthSession("u1", "as1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := s.RotateAccessJTI("jti-r", "jti-a3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rotating a revoked session: err = %v, want ErrNotFound", err)
	}
}

func TestUploadOptionEnabled(t *testing.T) {
	s := openTestStore(t)

	enabled, err := s.UploadOptionEnabled("parameter", "preprocessing")
	if err != nil {
		t.Fatalf("read toggle: %v", err)
	}
	if !enabled {
		t.Error("preprocessing should default on")
	}

	enabled, err = s.UploadOptionEnabled("structure", "speaker_stats")
	if err != nil {
		t.Fatalf("read toggle: %v", err)
	}
	if enabled {
		t.Error("speaker_stats should default off")
	}

	// Unknown keys are off, not an error.
	if enabled, err := s.UploadOptionEnabled("parameter", "no-such-key"); err != nil || enabled {
		t.Errorf("unknown key: enabled=%v err=%v, want false, nil", enabled, err)
	}

	// Real database failures must surface.
	s.Close()
	if _, err := s.UploadOptionEnabled("parameter", "preprocessing"); err == nil {
		t.Error("closed store should return an error, not a silent false")
	}
}

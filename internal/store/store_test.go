package store

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"claimtrack/internal/classify"
	"claimtrack/internal/model"
	"claimtrack/internal/segment"
)

const carolina = "Carolina is a scientist. She was born in 1985. Her research focuses on deforestation."

func newTestStore() *Store {
	policy := model.DefaultPolicy()
	return New(segment.New(segment.DefaultMinLength), classify.New(policy), policy, zap.NewNop())
}

func applyInsert(t *testing.T, s *Store, at int, ins string) {
	t.Helper()
	text := s.Text()
	newText := text[:at] + ins + text[at:]
	if err := s.ApplyEdit(model.Edit{Start: at, OldLen: 0, NewLen: len(ins)}, newText); err != nil {
		t.Fatalf("Expected insert to apply, got %v", err)
	}
}

func applyDelete(t *testing.T, s *Store, at, n int) {
	t.Helper()
	text := s.Text()
	newText := text[:at] + text[at+n:]
	if err := s.ApplyEdit(model.Edit{Start: at, OldLen: n, NewLen: 0}, newText); err != nil {
		t.Fatalf("Expected delete to apply, got %v", err)
	}
}

// checkInvariants verifies the shift invariant at a quiescent point: every
// span in bounds, matching the current substring, no two claims overlapping.
func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	claims := s.All()
	for i, c := range claims {
		if c.Start < 0 || c.Start >= c.End || c.End > len(s.Text()) {
			t.Errorf("Claim %s span [%d,%d) out of bounds (len %d)", c.ID, c.Start, c.End, len(s.Text()))
			continue
		}
		if s.Text()[c.Start:c.End] != c.Text {
			t.Errorf("Claim %s cached text desynced: %q != %q", c.ID, c.Text, s.Text()[c.Start:c.End])
		}
		if i > 0 && c.Start < claims[i-1].End {
			t.Errorf("Claims %s and %s overlap", claims[i-1].ID, c.ID)
		}
	}
}

func TestStore_FullExtraction(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	claims := s.All()
	if len(claims) != 3 {
		t.Fatalf("Expected 3 claims, got %d", len(claims))
	}

	// Second sentence contains "born": biographical, inline citation required
	second := claims[1]
	if second.Text != "She was born in 1985." {
		t.Fatalf("Unexpected second claim: %q", second.Text)
	}
	if second.Type != model.ClaimTypeBLP {
		t.Errorf("Expected type blp, got %s", second.Type)
	}
	if second.Risk != model.RiskMedium {
		t.Errorf("Expected medium risk, got %s", second.Risk)
	}
	if !second.RequiresInline {
		t.Error("Expected requires_inline")
	}
	if second.Status != model.StatusUnsupported {
		t.Errorf("Expected unsupported status, got %s", second.Status)
	}

	checkInvariants(t, s)
}

func TestStore_InsertBeforeShiftsAndPreservesIDs(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	before := s.All()
	rev := s.Revision()

	applyInsert(t, s, 0, "ABCDEFGHIJ")

	if s.DocRevision() != 1 {
		t.Errorf("Expected doc revision 1, got %d", s.DocRevision())
	}
	if s.Revision() <= rev {
		t.Error("Expected store revision to advance")
	}

	// Claims 2 and 3 sit strictly after the edit: same ids, spans +10
	for _, old := range before[1:] {
		got, err := s.Select(old.ID)
		if err != nil {
			t.Fatalf("Expected claim %s to survive, got %v", old.ID, err)
		}
		if got.Start != old.Start+10 || got.End != old.End+10 {
			t.Errorf("Claim %s: expected span [%d,%d), got [%d,%d)",
				old.ID, old.Start+10, old.End+10, got.Start, got.End)
		}
		if got.Status != old.Status {
			t.Errorf("Claim %s: status changed across shift", old.ID)
		}
	}

	checkInvariants(t, s)
}

func TestStore_StableIDAcrossIncidentalResegmentation(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	third := s.All()[2]
	notes := "checked against the 2020 survey"
	status := model.StatusPending
	if err := s.UpdateUserFields(third.ID, UserUpdate{Status: &status, Notes: &notes}); err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}

	// Insert a space right after sentence 2: sentence 3 is re-segmented but
	// its text is unchanged, so the id and user state survive
	applyInsert(t, s, 46, " ")

	got, err := s.Select(third.ID)
	if err != nil {
		t.Fatalf("Expected claim to keep its id, got %v", err)
	}
	if got.Text != third.Text {
		t.Errorf("Expected unchanged text, got %q", got.Text)
	}
	if got.Start != third.Start+1 {
		t.Errorf("Expected start shifted by 1, got %d", got.Start)
	}
	if got.Status != model.StatusPending || got.Notes != notes {
		t.Error("Expected user-visible state preserved across re-segmentation")
	}

	checkInvariants(t, s)
}

func TestStore_EditInsideSentenceReplacesClaim(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	second := s.All()[1]

	// Change "1985" to "1986" inside sentence 2
	at := strings.Index(carolina, "1985")
	newText := strings.Replace(carolina, "1985", "1986", 1)
	if err := s.ApplyEdit(model.Edit{Start: at, OldLen: 4, NewLen: 4}, newText); err != nil {
		t.Fatalf("Expected edit to apply, got %v", err)
	}

	if s.Count() != 3 {
		t.Fatalf("Expected 3 claims, got %d", s.Count())
	}

	// The sentence text changed, so the tie-break does not apply
	if _, err := s.Select(second.ID); err == nil {
		t.Error("Expected changed sentence to get a new id")
	}

	var found bool
	for _, c := range s.All() {
		if c.Text == "She was born in 1986." {
			found = true
			if c.Type != model.ClaimTypeBLP {
				t.Errorf("Expected re-classified blp, got %s", c.Type)
			}
		}
	}
	if !found {
		t.Error("Expected re-segmented sentence with new year")
	}

	checkInvariants(t, s)
}

func TestStore_DeleteCollapsesClaim(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	// Delete sentence 2 entirely, including its trailing space
	applyDelete(t, s, 25, 22)

	if s.Count() != 2 {
		t.Fatalf("Expected 2 claims after deletion, got %d", s.Count())
	}
	for _, c := range s.All() {
		if strings.Contains(c.Text, "born") {
			t.Errorf("Expected deleted sentence gone, found %q", c.Text)
		}
	}

	checkInvariants(t, s)
}

func TestStore_DeleteAtStartDropsFirstClaim(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	before := s.All()

	// Delete sentence 1 entirely, including its trailing space. The collapsed
	// span sits at the region boundary, so the claim must still be swept.
	applyDelete(t, s, 0, 25)

	if s.Count() != 2 {
		t.Fatalf("Expected 2 claims after deletion, got %d", s.Count())
	}
	if _, err := s.Select(before[0].ID); err == nil {
		t.Error("Expected first claim to be gone")
	}
	for _, c := range s.All() {
		if strings.Contains(c.Text, "scientist") {
			t.Errorf("Expected deleted sentence gone, found %q", c.Text)
		}
	}

	// The second sentence now opens the document, same id, span shifted
	got, err := s.Select(before[1].ID)
	if err != nil {
		t.Fatalf("Expected second claim to survive, got %v", err)
	}
	if got.Start != 0 || got.End != 21 {
		t.Errorf("Expected span [0,21), got [%d,%d)", got.Start, got.End)
	}

	checkInvariants(t, s)
}

func TestStore_EditSequenceKeepsInvariants(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	applyInsert(t, s, 0, "Intro sentence that is long enough to track. ")
	checkInvariants(t, s)

	applyDelete(t, s, 10, 5)
	checkInvariants(t, s)

	applyInsert(t, s, len(s.Text()), " A closing remark that also carries enough length.")
	checkInvariants(t, s)

	applyDelete(t, s, 0, 20)
	checkInvariants(t, s)
}

func TestStore_ApplyEditRejectsBadEdit(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	err := s.ApplyEdit(model.Edit{Start: 80, OldLen: 20, NewLen: 0}, carolina[:66])
	if err == nil {
		t.Error("Expected out-of-bounds edit to be rejected")
	}
	if s.DocRevision() != 0 {
		t.Errorf("Expected revision unchanged on rejected edit, got %d", s.DocRevision())
	}
}

func TestStore_Filter(t *testing.T) {
	s := newTestStore()
	text := "== Claims ==\n" +
		"The controversial decision was disputed by many observers. " +
		"The town had 4,500 residents in 2001. " +
		"Nothing remarkable happened afterwards in the region."
	s.LoadOrExtract(text, nil)

	high := model.RiskHigh
	got := s.Filter(Criteria{Risk: &high})
	if len(got) != 1 || got[0].Type != model.ClaimTypeContentious {
		t.Fatalf("Expected single contentious high-risk claim, got %+v", got)
	}

	section := "Claims"
	typ := model.ClaimTypeStatistic
	got = s.Filter(Criteria{Section: &section, Type: &typ})
	if len(got) != 1 || !strings.Contains(got[0].Text, "4,500") {
		t.Fatalf("Expected the statistic claim, got %+v", got)
	}

	ghost := "No such section"
	if got := s.Filter(Criteria{Section: &ghost}); len(got) != 0 {
		t.Errorf("Expected empty result, got %+v", got)
	}
}

func TestStore_SelectNotFound(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	_, err := s.Select("missing")
	var nf *NotFoundError
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if ok := errorsAs(err, &nf); !ok {
		t.Fatalf("Expected NotFoundError type, got %T", err)
	}
}

func TestStore_UpdateUserFieldsGating(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract("The controversial decision was disputed by many local observers.", nil)

	c := s.All()[0]
	if c.Risk != model.RiskHigh {
		t.Fatalf("Expected high-risk claim, got %s", c.Risk)
	}

	supported := model.StatusSupported
	if err := s.UpdateUserFields(c.ID, UserUpdate{Status: &supported}); err == nil {
		t.Error("Expected supported without sources to be rejected")
	}

	lowQ := 30
	err := s.UpdateUserFields(c.ID, UserUpdate{
		Status:        &supported,
		Sources:       []string{"smith2020"},
		SourceQuality: &lowQ,
	})
	if err == nil {
		t.Error("Expected source quality below policy floor to be rejected")
	}

	okQ := 85
	err = s.UpdateUserFields(c.ID, UserUpdate{
		Status:        &supported,
		Sources:       []string{"smith2020"},
		SourceQuality: &okQ,
	})
	if err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}

	got, _ := s.Select(c.ID)
	if got.Status != model.StatusSupported || len(got.Sources) != 1 {
		t.Errorf("Expected supported claim with one source, got %+v", got)
	}
}

func TestStore_ExistingRefsMakePending(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(`The bridge was finished in 1887.<ref name="archive"/> It remains in daily use today.`, nil)

	claims := s.All()
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claims))
	}
	if claims[0].Status != model.StatusPending {
		t.Errorf("Expected claim with ref to start pending, got %s", claims[0].Status)
	}
	if len(claims[0].ExistingRefs) != 1 || claims[0].ExistingRefs[0] != "archive" {
		t.Errorf("Expected existing_refs [archive], got %v", claims[0].ExistingRefs)
	}
	if claims[1].Status != model.StatusUnsupported {
		t.Errorf("Expected unreferenced claim unsupported, got %s", claims[1].Status)
	}
}

func TestStore_MirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "draft.wiki")

	s := newTestStore()
	s.LoadOrExtract(carolina, nil)

	notes := "verify birth year"
	if err := s.UpdateUserFields(s.All()[1].ID, UserUpdate{Notes: &notes}); err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}
	if err := s.SaveMirror(docPath); err != nil {
		t.Fatalf("Expected mirror save, got %v", err)
	}

	set, err := LoadMirror(MirrorPath(docPath))
	if err != nil {
		t.Fatalf("Expected mirror load, got %v", err)
	}
	if set == nil || len(set.Claims) != 3 {
		t.Fatalf("Expected 3 persisted claims, got %+v", set)
	}
	if set.TextSHA256 != TextDigest(carolina) {
		t.Error("Expected digest of current text")
	}

	// A fresh store adopts the persisted set: same ids, same user state
	s2 := newTestStore()
	s2.LoadOrExtract(carolina, set)
	if s2.Count() != 3 {
		t.Fatalf("Expected 3 adopted claims, got %d", s2.Count())
	}
	got, err := s2.Select(s.All()[1].ID)
	if err != nil {
		t.Fatalf("Expected adopted claim, got %v", err)
	}
	if got.Notes != notes {
		t.Errorf("Expected notes preserved, got %q", got.Notes)
	}
}

func TestStore_LoadDropsInvalidPersistedSpans(t *testing.T) {
	s := newTestStore()
	s.LoadOrExtract(carolina, nil)
	set := s.Snapshot("draft.wiki")

	// Corrupt one claim: span past end of text
	set.Claims[0].End = len(carolina) + 50
	badID := set.Claims[0].ID

	s2 := newTestStore()
	s2.LoadOrExtract(carolina, set)

	// The offending claim is dropped and its region re-extracted; the
	// document is never rejected
	if s2.Count() != 3 {
		t.Fatalf("Expected 3 claims after recovery, got %d", s2.Count())
	}
	if _, err := s2.Select(badID); err == nil {
		t.Error("Expected corrupted claim id to be gone")
	}
	checkInvariants(t, s2)
}

func TestStore_LoadMirrorMissingFile(t *testing.T) {
	set, err := LoadMirror(filepath.Join(t.TempDir(), "absent.claims.json"))
	if err != nil {
		t.Fatalf("Expected missing mirror to be nil, nil; got %v", err)
	}
	if set != nil {
		t.Errorf("Expected nil set, got %+v", set)
	}
}

// errorsAs avoids importing errors just for one assertion helper
func errorsAs(err error, target **NotFoundError) bool {
	for err != nil {
		if e, ok := err.(*NotFoundError); ok {
			*target = e
			return true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

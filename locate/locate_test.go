package locate

import (
	"testing"

	"unjit/hosting"
	"unjit/session"
)

// stageIntro scripts the introspector per locate stage: handle lookups return
// byHandle[n] on the n-th call, address lookup returns byAddr.
type stageIntro struct {
	byHandle [][]session.MethodRecord
	byAddr   *session.MethodRecord
	calls    int
	flushes  int
}

func (f *stageIntro) Flush() error { f.flushes++; return nil }

func (f *stageIntro) MethodsByHandle(session.MethodHandle) ([]session.MethodRecord, error) {
	if f.calls >= len(f.byHandle) {
		return nil, nil
	}
	r := f.byHandle[f.calls]
	f.calls++
	return r, nil
}

func (f *stageIntro) MethodByAddress(uint64) (*session.MethodRecord, error) { return f.byAddr, nil }
func (f *stageIntro) Signature(session.MethodHandle) (string, bool)         { return "", false }
func (f *stageIntro) ReadMemory(uint64, []byte) (int, error)                { return 0, nil }
func (f *stageIntro) Target() session.Target                                { return session.Target{Arch: session.ArchX64} }
func (f *stageIntro) Close() error                                          { return nil }

func leased(t *testing.T, intro session.Introspector) *session.Session {
	t.Helper()
	p := session.NewPool(func() (session.Introspector, error) { return intro, nil })
	s, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	return s
}

var cm = hosting.CompiledMethod{Handle: 7, Entry: 0x7f001000, Token: 0x06000001}

func rec(size uint32) session.MethodRecord {
	return session.MethodRecord{
		Handle:    7,
		Token:     0x06000001,
		Signature: "Demo.A.M()",
		Hot:       session.Region{Start: 0x7f001000, Size: size},
	}
}

func TestFirstStageSucceeds(t *testing.T) {
	intro := &stageIntro{byHandle: [][]session.MethodRecord{{rec(32)}}}
	got := Hot(leased(t, intro), cm, nil)
	if got == nil || got.Hot.Size != 32 {
		t.Fatalf("Hot() = %+v, want 32-byte region", got)
	}
	if intro.flushes != 0 {
		t.Errorf("flushes = %d, want 0 (no escalation)", intro.flushes)
	}
}

func TestSecondStageAfterFlush(t *testing.T) {
	intro := &stageIntro{byHandle: [][]session.MethodRecord{
		nil,        // stage 1: not yet visible
		{rec(48)},  // stage 2: visible after flush
	}}
	got := Hot(leased(t, intro), cm, nil)
	if got == nil || got.Hot.Size != 48 {
		t.Fatalf("Hot() = %+v, want 48-byte region", got)
	}
	if intro.flushes != 1 {
		t.Errorf("flushes = %d, want 1", intro.flushes)
	}
}

func TestThirdStageByAddress(t *testing.T) {
	r := rec(16)
	intro := &stageIntro{
		byHandle: [][]session.MethodRecord{nil, nil},
		byAddr:   &r,
	}
	got := Hot(leased(t, intro), cm, nil)
	if got == nil || got.Hot.Size != 16 {
		t.Fatalf("Hot() = %+v, want 16-byte region", got)
	}
}

func TestAllStagesExhausted(t *testing.T) {
	intro := &stageIntro{byHandle: [][]session.MethodRecord{nil, nil}}
	if got := Hot(leased(t, intro), cm, nil); got != nil {
		t.Fatalf("Hot() = %+v, want nil", got)
	}
	if intro.calls != 2 {
		t.Errorf("handle lookups = %d, want 2 (bounded)", intro.calls)
	}
}

func TestZeroSizeRecordEscalates(t *testing.T) {
	intro := &stageIntro{byHandle: [][]session.MethodRecord{
		{rec(0)},  // present but zero-size
		{rec(24)}, // compiled after flush
	}}
	got := Hot(leased(t, intro), cm, nil)
	if got == nil || got.Hot.Size != 24 {
		t.Fatalf("Hot() = %+v, want 24-byte region", got)
	}
}

func TestPickRecordPrefersNonZeroSibling(t *testing.T) {
	zero := rec(0)
	sibling := rec(64)
	other := session.MethodRecord{Token: 0x06000002, Signature: "Demo.A.N()", Hot: session.Region{Size: 99}}

	tests := []struct {
		name    string
		records []session.MethodRecord
		want    uint32 // 0 = expect nil
	}{
		{"empty", nil, 0},
		{"primary compiled", []session.MethodRecord{sibling, zero}, 64},
		{"zero primary, compiled sibling", []session.MethodRecord{zero, sibling}, 64},
		{"zero primary, mismatched token", []session.MethodRecord{zero, other}, 0},
		{"all zero", []session.MethodRecord{zero, zero}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickRecord(tt.records)
			if tt.want == 0 {
				if got != nil {
					t.Fatalf("pickRecord() = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Hot.Size != tt.want {
				t.Fatalf("pickRecord() = %+v, want size %d", got, tt.want)
			}
		})
	}
}

// Package locate resolves the native code region of a freshly JIT-compiled
// method. The introspection session's cached view is only eventually
// consistent with the runtime: immediately after compilation a method may
// appear with a zero-size region, or not at all. Resolution escalates through
// three fixed strategies; there is no unbounded retry.
package locate

import (
	"go.uber.org/zap"

	"unjit/hosting"
	"unjit/session"
)

// Strategy is one bounded lookup attempt.
type Strategy struct {
	Name string
	Run  func(s *session.Session, cm hosting.CompiledMethod) ([]session.MethodRecord, error)
}

// Strategies returns the fixed escalation order:
//  1. look the method up by handle in the current session state,
//  2. invalidate the session's cached view and look up by handle again,
//  3. fall back to the native entry-point address, bypassing handle lookup.
func Strategies() []Strategy {
	return []Strategy{
		{
			Name: "handle",
			Run: func(s *session.Session, cm hosting.CompiledMethod) ([]session.MethodRecord, error) {
				return s.MethodsByHandle(cm.Handle)
			},
		},
		{
			Name: "flush+handle",
			Run: func(s *session.Session, cm hosting.CompiledMethod) ([]session.MethodRecord, error) {
				if err := s.Invalidate(); err != nil {
					return nil, err
				}
				return s.MethodsByHandle(cm.Handle)
			},
		},
		{
			Name: "address",
			Run: func(s *session.Session, cm hosting.CompiledMethod) ([]session.MethodRecord, error) {
				rec, err := s.MethodByAddress(cm.Entry)
				if err != nil || rec == nil {
					return nil, err
				}
				return []session.MethodRecord{*rec}, nil
			},
		},
	}
}

// Hot returns the method's record with a non-zero hot region, or nil when
// every strategy is exhausted. Strategy errors are logged and treated as a
// failed stage, not a fatal condition; the caller turns a nil result into a
// RegionNotFound diagnostic.
func Hot(s *session.Session, cm hosting.CompiledMethod, log *zap.Logger) *session.MethodRecord {
	if log == nil {
		log = zap.NewNop()
	}
	for _, st := range Strategies() {
		records, err := st.Run(s, cm)
		if err != nil {
			log.Debug("locate stage failed",
				zap.String("strategy", st.Name),
				zap.Uint64("handle", uint64(cm.Handle)),
				zap.Error(err))
			continue
		}
		if rec := pickRecord(records); rec != nil {
			log.Debug("located code region",
				zap.String("strategy", st.Name),
				zap.Uint64("start", rec.Hot.Start),
				zap.Uint32("size", rec.Hot.Size))
			return rec
		}
	}
	return nil
}

// pickRecord selects a usable record. The primary record can report a
// zero-size region while a sibling record with the same metadata token and
// identical full signature is compiled; the runtime never explains why. Match
// by token + signature and prefer the non-zero sibling. Compatibility
// workaround, not a verified invariant of the runtime.
func pickRecord(records []session.MethodRecord) *session.MethodRecord {
	if len(records) == 0 {
		return nil
	}
	primary := records[0]
	if primary.Hot.Size > 0 {
		return &primary
	}
	for i := 1; i < len(records); i++ {
		r := records[i]
		if r.Token == primary.Token && r.Signature == primary.Signature && r.Hot.Size > 0 {
			return &r
		}
	}
	return nil
}

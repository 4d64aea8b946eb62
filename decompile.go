package unjit

import (
	"fmt"
	"io"

	"github.com/zboralski/lattice"
	"go.uber.org/zap"

	"unjit/callgraph"
	"unjit/diag"
	"unjit/disasm"
	"unjit/expand"
	"unjit/hosting"
	"unjit/listing"
	"unjit/locate"
	"unjit/metadata"
	"unjit/session"
)

// Decompiler runs decompilation requests against a hosting facility, leasing
// an introspection session per request. Safe for concurrent use; each request
// owns its own session and load context.
type Decompiler struct {
	hosting hosting.Facility
	pool    *session.Pool
	log     *zap.Logger
}

// Option configures a Decompiler.
type Option func(*Decompiler)

// WithLogger attaches a structured logger. Default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Decompiler) { d.log = log }
}

// New creates a Decompiler over the given facility and session pool.
func New(f hosting.Facility, p *session.Pool, opts ...Option) *Decompiler {
	d := &Decompiler{hosting: f, pool: p, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Report summarizes one decompilation: counts, the inter-method call graph,
// and per-method control flow graphs.
type Report struct {
	Methods     int // members with disassembled bodies
	Diagnostics int // members or operands degraded to diagnostics
	CallGraph   *lattice.Graph
	CFG         *lattice.CFGGraph
}

// Decompile loads the module bytes into a fresh context, JIT-compiles every
// concrete method, and writes the annotated listing to w.
//
// Unsupported module constructs and unsupported architectures fail the whole
// request before anything is written. Every per-member failure after that
// point degrades to a diagnostic comment inside the listing.
func (d *Decompiler) Decompile(data []byte, name string, w io.Writer) (*Report, error) {
	s, err := d.pool.Lease()
	if err != nil {
		return nil, fmt.Errorf("lease session: %w", err)
	}
	defer d.pool.Release(s)

	if err := s.Invalidate(); err != nil {
		return nil, fmt.Errorf("invalidate session: %w", err)
	}

	target := s.Target()
	mode, err := disasm.ModeFor(target.Arch)
	if err != nil {
		return nil, err
	}

	ctx, err := d.hosting.NewContext(name)
	if err != nil {
		return nil, fmt.Errorf("create load context: %w", err)
	}
	defer func() {
		if uerr := ctx.Unload(); uerr != nil {
			d.log.Warn("unload context failed", zap.String("module", name), zap.Error(uerr))
		}
	}()

	mod, err := ctx.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load module %s: %w", name, err)
	}
	// Validate before the first byte of output: an unsupported construct
	// means no listing at all, not a truncated one.
	if err := metadata.Validate(mod); err != nil {
		return nil, err
	}

	items := expand.Module(mod)
	d.log.Info("module expanded",
		zap.String("module", name),
		zap.Int("items", len(items)))

	lw := listing.NewWriter(w)
	lw.Header(target, name)
	if target.Profiler {
		lw.ProfilerNote()
	}

	rep := &Report{}
	dec := disasm.NewX86(s)
	lookup := func(addr uint64) (string, bool) {
		rec, err := s.MethodByAddress(addr)
		if err != nil || rec == nil {
			return "", false
		}
		return rec.Signature, true
	}

	var methods []callgraph.MethodInfo
	for _, item := range items {
		if item.Method == nil {
			lw.Member(item.Signature)
			lw.Diagnostic(item.Diag)
			rep.Diagnostics++
			continue
		}
		info, ok := d.decompileMember(s, ctx, dec, lw, mode, item, lookup, rep)
		if ok {
			methods = append(methods, info)
		}
	}

	rep.CallGraph = callgraph.BuildCallGraph(methods)
	rep.CFG = callgraph.BuildCFG(methods)
	return rep, nil
}

// decompileMember compiles, locates, and disassembles one concrete method.
// Returns ok=false when the member degraded to a diagnostic.
func (d *Decompiler) decompileMember(
	s *session.Session,
	ctx hosting.Context,
	dec *disasm.X86,
	lw *listing.Writer,
	mode disasm.Mode,
	item expand.Item,
	lookup disasm.ForeignLookup,
	rep *Report,
) (callgraph.MethodInfo, bool) {
	cm, err := ctx.Compile(*item.Method)
	if err != nil {
		lw.Member(item.Signature)
		lw.Diagnostic(diag.Newf(diag.KindCompileFailed, "compilation failed: %v", err))
		rep.Diagnostics++
		return callgraph.MethodInfo{}, false
	}

	// Prefer the runtime's formatting of the signature; the declared one is
	// the fallback when the handle can no longer be resolved.
	sig := item.Signature
	if rs, ok := s.Signature(cm.Handle); ok {
		sig = rs
	}
	lw.Member(sig)

	rec := locate.Hot(s, cm, d.log)
	if rec == nil {
		lw.Diagnostic(diag.Newf(diag.KindRegionNotFound, "Failed to find native code region for %s", sig))
		if item.Method.HasReferenceArgs() {
			lw.Note("instantiations over reference types may share one native body")
		}
		rep.Diagnostics++
		return callgraph.MethodInfo{}, false
	}

	stream, err := dec.Decode(rec.Hot.Start, rec.Hot.Size, mode)
	if err != nil {
		lw.Diagnostic(diag.Newf(diag.KindReadFailed, "failed to read native code region at %#x: %v", rec.Hot.Start, err))
		rep.Diagnostics++
		return callgraph.MethodInfo{}, false
	}

	info := callgraph.MethodInfo{Signature: sig, Calls: map[uint32]string{}}
	for {
		inst, ok := stream.Next()
		if !ok {
			break
		}
		res := disasm.Resolve(inst, rec.Hot.Start, rec.Hot.Size, lookup)
		lw.Instruction(inst, res.Annotation)
		if res.Failed {
			rep.Diagnostics++
		}
		if res.Callee != "" {
			info.Calls[inst.Offset] = res.Callee
		}
		info.Insts = append(info.Insts, inst)
	}
	if rec.Cold.Size > 0 {
		lw.Note("cold region: %d bytes", rec.Cold.Size)
	}

	rep.Methods++
	return info, true
}

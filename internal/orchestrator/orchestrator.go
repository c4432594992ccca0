// Package orchestrator drives a whole project: load the root module,
// follow `module` imports breadth-first, elaborate every module's
// commands into one shared set of registries, order the resulting
// theorems safely, and check each with the kernel (spec §4.L, §5).
package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dragonhatcher/watson/internal/circularity"
	"github.com/dragonhatcher/watson/internal/diagnostics"
	"github.com/dragonhatcher/watson/internal/elaborate"
	"github.com/dragonhatcher/watson/internal/kernel"
	"github.com/dragonhatcher/watson/internal/source"
)

// Result is a finished run: every certificate the kernel issued, plus the
// accumulated diagnostics (parse/name/shape/etc. errors do not prevent
// other modules from still being processed, per the accumulating model).
type Result struct {
	Elaborator *elaborate.Elaborator
	Certs      map[string]*kernel.ProofCertificate
	CheckOrder []string
}

// Run expects rootModule already loaded into cache (the caller decides
// its Origin; normally OriginRoot). It follows every `module` import it
// (and transitively its imports) names in breadth-first,
// first-discovered order, loading each with OriginImport, elaborates
// every module's commands into one Elaborator, and certifies every
// resulting theorem.
//
// A circular `by` dependency among theorems is reported as a
// diagnostics.KindKernel error per cycle; every theorem in the cycle
// still receives an errored certificate (spec §8 S5: "both checked but
// flagged") and the rest of the project is still checked normally.
func Run(cache *source.Cache, rootModule string) (*Result, error) {
	elab, err := elaborate.NewElaborator(cache)
	if err != nil {
		return nil, err
	}

	queue := []string{rootModule}
	queued := map[string]bool{rootModule: true}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, ok := cache.Get(name); !ok {
			if _, err := cache.Load(name, source.OriginImport, source.Span{}); err != nil {
				elab.Diags.Errorf(diagnostics.KindIO, "%s", err.Error())
				continue
			}
		}
		imports := elab.ElaborateSource(name)
		for _, imp := range imports {
			if !queued[imp] {
				queued[imp] = true
				queue = append(queue, imp)
			}
		}
	}

	res := &Result{Elaborator: elab, Certs: make(map[string]*kernel.ProofCertificate)}

	ord := circularity.Order(elab.Theorems, elab.Order)
	res.CheckOrder = ord.Order
	for _, cycle := range ord.Cycles {
		elab.Diags.Errorf(diagnostics.KindKernel, "%s", (&circularity.ErrCycle{Theorems: cycle}).Error())
	}

	k := kernel.NewKernel(elab.Syn, elab.Store)
	for _, name := range ord.Order {
		th := elab.Theorems[name]
		var cert *kernel.ProofCertificate
		if ord.Cyclic[name] {
			cert = k.MarkCircular(th, &circularity.ErrCycle{Theorems: sccOf(ord.Cycles, name)})
		} else {
			cert = k.Check(th)
		}
		res.Certs[name] = cert
		if cert.Status == kernel.StatusErrored && !ord.Cyclic[name] {
			elab.Diags.ErrorAt(diagnostics.KindKernel, th.Span, "%s", cert.Err.Error())
		}
	}
	return res, nil
}

// sccOf finds the cycle name belongs to, for per-theorem certificate
// error messages naming just its own component.
func sccOf(cycles [][]string, name string) []string {
	for _, c := range cycles {
		for _, n := range c {
			if n == name {
				return c
			}
		}
	}
	return []string{name}
}

// Watch runs Run once immediately, then again each time a file under
// rootDir changes, delivering every Result on the returned channel until
// stop is closed. Each rerun builds a fresh source.Cache and Elaborator
// from scratch — Watson's data model has no incremental-recheck concept
// (spec §1 Non-goals), so "watch" means "redo the whole project."
func Watch(rootDir, ext, rootModule string, stop <-chan struct{}) (<-chan *Result, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		watcher.Close()
		return nil, err
	}

	rerun := func() *Result {
		fresh := source.NewCache(rootDir, ext)
		if _, err := fresh.Load(rootModule, source.OriginRoot, source.Span{}); err != nil {
			return nil
		}
		res, err := Run(fresh, rootModule)
		if err != nil {
			return nil
		}
		return res
	}

	results := make(chan *Result, 1)
	go func() {
		defer watcher.Close()
		defer close(results)

		if res := rerun(); res != nil {
			results <- res
		}
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if res := rerun(); res != nil {
					results <- res
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return results, nil
}

package lexicon

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/pkg/errors"
)

// LoadFile reads a YAML overlay from path and merges it over the built-in
// defaults: any table present in the file replaces the default table
// wholesale, absent tables keep their defaults.  The merged result is
// validated before being returned.
func LoadFile(path string) (*Tables, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLexiconLoad, "failed to read lexicon file "+path)
	}

	overlay := &Tables{}
	if err := v.Unmarshal(overlay); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLexiconLoad, "failed to unmarshal lexicon file "+path)
	}

	merged := merge(Default(), overlay)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// merge overlays o onto base table by table.  Tables are replaced, never
// unioned: an overlay that lists medications is the complete medication
// lexicon for that deployment.
func merge(base, o *Tables) *Tables {
	out := *base
	if len(o.MedicationNames) > 0 {
		out.MedicationNames = o.MedicationNames
	}
	if len(o.MedicationStopwords) > 0 {
		out.MedicationStopwords = o.MedicationStopwords
	}
	if len(o.DoseUnits) > 0 {
		out.DoseUnits = o.DoseUnits
	}
	if len(o.FrequencyPatterns) > 0 {
		out.FrequencyPatterns = o.FrequencyPatterns
	}
	if len(o.RouteKeywords) > 0 {
		out.RouteKeywords = o.RouteKeywords
	}
	if len(o.LabTestTerms) > 0 {
		out.LabTestTerms = o.LabTestTerms
	}
	if len(o.ProcedureTerms) > 0 {
		out.ProcedureTerms = o.ProcedureTerms
	}
	if len(o.ConditionPhrases) > 0 {
		out.ConditionPhrases = o.ConditionPhrases
	}
	if len(o.CommonConditions) > 0 {
		out.CommonConditions = o.CommonConditions
	}
	if len(o.ConditionStopwords) > 0 {
		out.ConditionStopwords = o.ConditionStopwords
	}
	if len(o.InstructionVerbs) > 0 {
		out.InstructionVerbs = o.InstructionVerbs
	}
	if len(o.AlertKeywords) > 0 {
		out.AlertKeywords = o.AlertKeywords
	}
	if len(o.EscalationStopwords) > 0 {
		out.EscalationStopwords = o.EscalationStopwords
	}
	if len(o.HardMedications) > 0 {
		out.HardMedications = o.HardMedications
	}
	if len(o.DosingKeywords) > 0 {
		out.DosingKeywords = o.DosingKeywords
	}
	if len(o.ActionVerbs) > 0 {
		out.ActionVerbs = o.ActionVerbs
	}
	return &out
}

// Provider hands out the current Tables and can hot-reload them from a file.
// Reads are cheap; the pointer swap under RWMutex lets long extractions keep
// the snapshot they started with.
type Provider struct {
	mu     sync.RWMutex
	tables *Tables
	log    logging.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewProvider returns a Provider serving the given tables.  A nil tables
// argument means the built-in defaults; a nil logger is replaced with a nop.
func NewProvider(tables *Tables, log logging.Logger) *Provider {
	if tables == nil {
		tables = Default()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Provider{tables: tables, log: log.Named("lexicon")}
}

// Tables returns the current snapshot.  Callers must not mutate it.
func (p *Provider) Tables() *Tables {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tables
}

// Watch reloads the overlay at path whenever it changes on disk.  A change
// that fails to load or validate is logged and skipped; the previous tables
// stay active.  Watch is non-blocking; call Close to stop it.
func (p *Provider) Watch(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLexiconLoad, "failed to create lexicon watcher")
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrCodeLexiconLoad, "failed to watch lexicon file "+path)
	}

	p.watcher = w
	p.done = make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				tables, err := LoadFile(path)
				if err != nil {
					p.log.Warn("lexicon reload rejected, keeping previous tables",
						logging.String("path", path),
						logging.Err(err),
					)
					continue
				}
				p.mu.Lock()
				p.tables = tables
				p.mu.Unlock()
				p.log.Info("lexicon tables reloaded", logging.String("path", path))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				p.log.Warn("lexicon watcher error", logging.Err(err))
			case <-p.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one is running.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/shared/id"
)

// definitionGlob matches workflow definition files anywhere under the
// catalogue directory.
const definitionGlob = "**/*.{yml,yaml}"

// collectionFile carries per-directory collection metadata.
const collectionFile = "collection.yml"

// entry pairs a loaded workflow with the file it came from.
type entry struct {
	wf   *Workflow
	path string // absolute
}

// Engine owns the workflow catalogue directory.
type Engine struct {
	dir    string
	logger *logging.Logger

	mu          sync.RWMutex
	byID        map[id.WorkflowID]*entry
	byPath      map[string]id.WorkflowID
	collections map[string]Collection
	parseErrors []ParseError
}

// NewEngine creates an engine over the given catalogue directory. Call Load
// before first use.
func NewEngine(dir string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		dir:         dir,
		logger:      logger,
		byID:        make(map[id.WorkflowID]*entry),
		byPath:      make(map[string]id.WorkflowID),
		collections: make(map[string]Collection),
	}
}

// workflowID derives a stable id from a catalogue-relative path, so a
// definition keeps its identity across reloads.
func workflowID(rel string) id.WorkflowID {
	return id.WorkflowID(id.WorkflowPrefix + "_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(rel)).String())
}

// Load scans the catalogue directory recursively. Sub-directories become
// named collections. Parse errors are isolated per file and surfaced via
// Errors; they never abort the load.
func (e *Engine) Load() error {
	byID := make(map[id.WorkflowID]*entry)
	byPath := make(map[string]id.WorkflowID)
	collections := make(map[string]Collection)
	var parseErrors []ParseError

	var walkMu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, e.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(e.dir, path)
		if relErr != nil {
			return nil
		}
		ok, _ := doublestar.Match(definitionGlob, filepath.ToSlash(rel))
		if !ok {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			walkMu.Lock()
			parseErrors = append(parseErrors, ParseError{Path: rel, Detail: readErr.Error()})
			walkMu.Unlock()
			return nil
		}

		if filepath.Base(rel) == collectionFile {
			var c Collection
			if yamlErr := parseCollection(data, &c); yamlErr != nil {
				walkMu.Lock()
				parseErrors = append(parseErrors, ParseError{Path: rel, Detail: yamlErr.Error()})
				walkMu.Unlock()
				return nil
			}
			walkMu.Lock()
			collections[filepath.Dir(rel)] = c
			walkMu.Unlock()
			return nil
		}

		wf, parseErr := Parse(data)
		if parseErr != nil {
			walkMu.Lock()
			parseErrors = append(parseErrors, ParseError{Path: rel, Detail: parseErr.Error()})
			walkMu.Unlock()
			return nil
		}
		wf.ID = workflowID(rel)
		if dir := filepath.Dir(rel); dir != "." {
			wf.Collection = strings.Split(filepath.ToSlash(dir), "/")[0]
		}

		walkMu.Lock()
		byID[wf.ID] = &entry{wf: wf, path: path}
		byPath[path] = wf.ID
		walkMu.Unlock()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scan %s: %w", e.dir, err)
	}

	e.mu.Lock()
	e.byID = byID
	e.byPath = byPath
	e.collections = collections
	e.parseErrors = parseErrors
	e.mu.Unlock()

	e.logger.Info("Workflow catalogue loaded",
		zap.String("dir", e.dir),
		zap.Int("workflows", len(byID)),
		zap.Int("errors", len(parseErrors)),
	)
	return nil
}

// Errors returns the parse errors accumulated by the last Load.
func (e *Engine) Errors() []ParseError {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ParseError, len(e.parseErrors))
	copy(out, e.parseErrors)
	return out
}

// Get returns a copy of the workflow with the given id.
func (e *Engine) Get(wfID id.WorkflowID) (*Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.byID[wfID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ent.wf
	return &cp, nil
}

// Filter narrows List results. A workflow matches if any set criterion
// matches; a zero Filter matches everything.
type Filter struct {
	Tag   string
	Shell string
	Query string
}

func (f Filter) empty() bool {
	return f.Tag == "" && f.Shell == "" && f.Query == ""
}

func (f Filter) matches(w *Workflow) bool {
	if f.empty() {
		return true
	}
	if f.Tag != "" {
		for _, t := range w.Tags {
			if t == f.Tag {
				return true
			}
		}
	}
	if f.Shell != "" && w.PermitsShell(f.Shell) {
		return true
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if strings.Contains(strings.ToLower(w.Name), q) ||
			strings.Contains(strings.ToLower(w.Description), q) {
			return true
		}
	}
	return false
}

// List returns matching workflows sorted by name.
func (e *Engine) List(f Filter) []Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Workflow, 0, len(e.byID))
	for _, ent := range e.byID {
		if f.matches(ent.wf) {
			out = append(out, *ent.wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Collections returns the loaded collection metadata keyed by directory.
func (e *Engine) Collections() map[string]Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Collection, len(e.collections))
	for k, v := range e.collections {
		out[k] = v
	}
	return out
}

// Resolve renders the workflow's command template with the given bindings.
// Substitution is textual and non-recursive: a resolved value containing
// placeholder syntax is never re-expanded. Values are not shell-quoted;
// quoting is the workflow author's responsibility.
func (e *Engine) Resolve(wfID id.WorkflowID, bindings map[string]string) (string, error) {
	wf, err := e.Get(wfID)
	if err != nil {
		return "", err
	}
	return Resolve(wf, bindings)
}

// Resolve renders one workflow with the given bindings.
func Resolve(wf *Workflow, bindings map[string]string) (string, error) {
	values := make(map[string]string, len(wf.Arguments))
	for i := range wf.Arguments {
		arg := &wf.Arguments[i]
		value, bound := bindings[arg.Name]
		if !bound && arg.DefaultValue != nil {
			value, bound = *arg.DefaultValue, true
		}
		if !bound {
			if arg.Required {
				return "", &MissingArgumentError{Name: arg.Name}
			}
			continue
		}
		if err := CheckValue(arg, value); err != nil {
			return "", err
		}
		values[arg.Name] = value
	}

	var unresolved string
	command := placeholderRe.ReplaceAllStringFunc(wf.Command, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := values[name]; ok {
			return v
		}
		if unresolved == "" {
			unresolved = name
		}
		return token
	})
	if unresolved != "" {
		return "", fmt.Errorf("%w: {{%s}}", ErrUnresolvedPlaceholder, unresolved)
	}
	return command, nil
}

// Save validates the workflow and writes it to the catalogue atomically
// (temp file plus rename). The file name derives from the workflow name.
func (e *Engine) Save(wf *Workflow) error {
	if err := Validate(wf); err != nil {
		return err
	}

	rel := slug(wf.Name) + ".yml"
	path := filepath.Join(e.dir, rel)

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.byPath[path]; ok && wf.ID != "" && existing != wf.ID {
		return fmt.Errorf("%w: %s", ErrNameCollision, rel)
	}
	if wf.ID == "" {
		wf.ID = workflowID(rel)
	}

	data, err := Marshal(wf)
	if err != nil {
		return err
	}
	if err := atomicWrite(path, data); err != nil {
		return err
	}

	cp := *wf
	e.byID[wf.ID] = &entry{wf: &cp, path: path}
	e.byPath[path] = wf.ID
	return nil
}

// Delete removes a workflow's file and catalogue entry.
func (e *Engine) Delete(wfID id.WorkflowID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.byID[wfID]
	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(ent.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", ent.path, err)
	}
	delete(e.byID, wfID)
	delete(e.byPath, ent.path)
	return nil
}

// Import validates the file at path and copies it into the catalogue. Name
// collisions resolve by appending -N to the file stem.
func (e *Engine) Import(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	wf, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Detail: err.Error()}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rel := stem + ".yml"
	for n := 1; fileExists(filepath.Join(e.dir, rel)); n++ {
		rel = fmt.Sprintf("%s-%d.yml", stem, n)
	}
	target := filepath.Join(e.dir, rel)

	if err := atomicWrite(target, data); err != nil {
		return nil, err
	}
	wf.ID = workflowID(rel)
	e.byID[wf.ID] = &entry{wf: wf, path: target}
	e.byPath[target] = wf.ID

	cp := *wf
	return &cp, nil
}

// Watch reloads the catalogue when the directory changes on disk, until ctx
// is cancelled. Reload failures are logged, never fatal.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", e.dir, err)
	}
	if err := watcher.Add(e.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", e.dir, err)
	}
	// Watch existing sub-directories (collections) too.
	filepath.WalkDir(e.dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != e.dir {
			watcher.Add(path)
		}
		return nil
	})

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						watcher.Add(ev.Name)
					}
				}
				// Debounce bursts of events into one reload.
				pending = time.After(200 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn("Catalogue watcher error", zap.Error(err))
			case <-pending:
				pending = nil
				if err := e.Load(); err != nil {
					e.logger.Warn("Catalogue reload failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func parseCollection(data []byte, c *Collection) error {
	return yaml.Unmarshal(data, c)
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/':
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "workflow"
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// atomicWrite writes data via a temp file and rename in the target dir.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".workflow-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

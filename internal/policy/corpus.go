// Package policy loads the policy clause corpus, matches clauses against measure
// tags and aggregates the resulting subsidies.
package policy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

//go:embed data/sample_corpus.yml
var sampleCorpus []byte

// SampleSource names the bundled corpus in LoadError and Corpus.Source.
const SampleSource = "embedded:sample_corpus.yml"

// Incentive is a percentage-of-CAPEX subsidy rule, optionally capped.
type Incentive struct {
	Rate float64  `json:"rate" yaml:"rate"`
	Cap  *float64 `json:"cap,omitempty" yaml:"cap,omitempty"`
}

// Clause is one entry of the policy corpus. Title and Body are opaque to matching.
type Clause struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Tags      blackboard.TagSet `json:"tags"`
	Incentive Incentive         `json:"incentive"`
}

// Specificity is the total number of tags on the clause. Fewer tags means more specific.
func (c *Clause) Specificity() int {
	return c.Tags.Len()
}

// LoadError reports a corpus that is absent, unreadable or malformed.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load policy corpus %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load policy corpus %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError checks if an error is a corpus LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Corpus is the immutable, indexed clause collection. Safe for concurrent reads.
type Corpus struct {
	version string
	source  string
	clauses []Clause
	byID    map[string]int

	// tag -> clause indexes, one index per dimension
	byAdmin    map[string][]int
	byIndustry map[string][]int
	byMeasure  map[string][]int
}

// Version returns the corpus version declared by the source.
func (c *Corpus) Version() string { return c.version }

// Source returns where the corpus was loaded from.
func (c *Corpus) Source() string { return c.source }

// Len returns the number of clauses.
func (c *Corpus) Len() int { return len(c.clauses) }

// Clause returns a clause by ID.
func (c *Corpus) Clause(id string) (Clause, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Clause{}, false
	}
	return c.clauses[i], true
}

// Clauses returns a copy of the clauses in declaration order.
func (c *Corpus) Clauses() []Clause {
	out := make([]Clause, len(c.clauses))
	copy(out, c.clauses)
	return out
}

// rawCorpus mirrors the file format. Tag fields are pointers so that a missing
// field can be told apart from an empty list.
type rawCorpus struct {
	Version string      `json:"version" yaml:"version"`
	Clauses []rawClause `json:"clauses" yaml:"clauses"`
}

type rawClause struct {
	ID            string     `json:"id" yaml:"id"`
	Title         string     `json:"title" yaml:"title"`
	Body          string     `json:"body" yaml:"body"`
	AdminCodes    *[]string  `json:"admin_codes" yaml:"admin_codes"`
	IndustryCodes *[]string  `json:"industry_codes" yaml:"industry_codes"`
	MeasureIDs    *[]string  `json:"measure_ids" yaml:"measure_ids"`
	Incentive     *Incentive `json:"incentive" yaml:"incentive"`
}

// LoadFile reads a corpus from a JSON or YAML file, chosen by extension.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "source unreadable", Err: err}
	}
	return Parse(data, path)
}

// LoadSample returns the bundled sample corpus.
func LoadSample() (*Corpus, error) {
	return Parse(sampleCorpus, SampleSource)
}

// Parse decodes and indexes a corpus. The source name selects the format:
// ".json" decodes as JSON, anything else as YAML.
func Parse(data []byte, source string) (*Corpus, error) {
	var raw rawCorpus
	if strings.EqualFold(filepath.Ext(source), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return nil, &LoadError{Path: source, Reason: "malformed JSON", Err: err}
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &LoadError{Path: source, Reason: "malformed YAML", Err: err}
		}
	}

	if len(raw.Clauses) == 0 {
		return nil, &LoadError{Path: source, Reason: "corpus has no clauses"}
	}

	corpus := &Corpus{
		version:    raw.Version,
		source:     source,
		clauses:    make([]Clause, 0, len(raw.Clauses)),
		byID:       make(map[string]int, len(raw.Clauses)),
		byAdmin:    make(map[string][]int),
		byIndustry: make(map[string][]int),
		byMeasure:  make(map[string][]int),
	}
	if corpus.version == "" {
		corpus.version = "unknown"
	}

	for i, rc := range raw.Clauses {
		clause, err := rc.toClause()
		if err != nil {
			return nil, &LoadError{Path: source, Reason: fmt.Sprintf("clause %d", i), Err: err}
		}
		if _, dup := corpus.byID[clause.ID]; dup {
			return nil, &LoadError{Path: source, Reason: fmt.Sprintf("duplicate clause id '%s'", clause.ID)}
		}

		idx := len(corpus.clauses)
		corpus.clauses = append(corpus.clauses, clause)
		corpus.byID[clause.ID] = idx
		index(corpus.byAdmin, clause.Tags.AdminCodes, idx)
		index(corpus.byIndustry, clause.Tags.IndustryCodes, idx)
		index(corpus.byMeasure, clause.Tags.MeasureIDs, idx)
	}

	return corpus, nil
}

func (rc rawClause) toClause() (Clause, error) {
	if rc.ID == "" {
		return Clause{}, fmt.Errorf("id is required")
	}
	if rc.AdminCodes == nil {
		return Clause{}, fmt.Errorf("clause '%s': admin_codes is required", rc.ID)
	}
	if rc.IndustryCodes == nil {
		return Clause{}, fmt.Errorf("clause '%s': industry_codes is required", rc.ID)
	}
	if rc.MeasureIDs == nil {
		return Clause{}, fmt.Errorf("clause '%s': measure_ids is required", rc.ID)
	}
	if rc.Incentive == nil {
		return Clause{}, fmt.Errorf("clause '%s': incentive is required", rc.ID)
	}
	if rc.Incentive.Rate < 0 || rc.Incentive.Rate > 1 {
		return Clause{}, fmt.Errorf("clause '%s': incentive rate must be within [0, 1], got %v", rc.ID, rc.Incentive.Rate)
	}
	if rc.Incentive.Cap != nil && *rc.Incentive.Cap < 0 {
		return Clause{}, fmt.Errorf("clause '%s': incentive cap must be >= 0, got %v", rc.ID, *rc.Incentive.Cap)
	}

	return Clause{
		ID:    rc.ID,
		Title: rc.Title,
		Body:  rc.Body,
		Tags: blackboard.TagSet{
			AdminCodes:    blackboard.NormalizeTags(*rc.AdminCodes),
			IndustryCodes: blackboard.NormalizeTags(*rc.IndustryCodes),
			MeasureIDs:    blackboard.NormalizeTags(*rc.MeasureIDs),
		},
		Incentive: *rc.Incentive,
	}, nil
}

func index(dim map[string][]int, tags []string, idx int) {
	for _, tag := range tags {
		dim[tag] = append(dim[tag], idx)
	}
}

// Loader loads a corpus at most once. An empty path selects the bundled sample.
type Loader struct {
	path   string
	once   sync.Once
	corpus *Corpus
	err    error
}

// NewLoader creates a loader for the given path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load returns the corpus, reading the source on the first call only.
// A failed load is remembered; later calls return the same error.
func (l *Loader) Load() (*Corpus, error) {
	l.once.Do(func() {
		if l.path == "" {
			l.corpus, l.err = LoadSample()
			return
		}
		l.corpus, l.err = LoadFile(l.path)
	})
	return l.corpus, l.err
}

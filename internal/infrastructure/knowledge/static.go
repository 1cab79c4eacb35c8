package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"gopkg.in/yaml.v3"
)

// Entry is one passage in a tenant's knowledge.yaml.
type Entry struct {
	ID     string `yaml:"id"`
	Text   string `yaml:"text"`
	Source string `yaml:"source"`
}

// StaticSearcher ranks passages from <tenantsDir>/<tenant>/config/knowledge.yaml
// by word overlap. It serves deployments without a vector store.
type StaticSearcher struct {
	tenantsDir string
	topK       int

	mu      sync.RWMutex
	entries map[string][]Entry
}

var _ gateways.KnowledgeSearch = (*StaticSearcher)(nil)

func NewStaticSearcher(tenantsDir string, topK int) *StaticSearcher {
	if topK <= 0 {
		topK = 3
	}
	return &StaticSearcher{tenantsDir: tenantsDir, topK: topK, entries: make(map[string][]Entry)}
}

// Add registers passages for a tenant directly.
func (s *StaticSearcher) Add(tenantID string, entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tenantID] = append(s.entries[tenantID], entries...)
}

func (s *StaticSearcher) load(tenantID string) ([]Entry, error) {
	s.mu.RLock()
	entries, ok := s.entries[tenantID]
	s.mu.RUnlock()
	if ok {
		return entries, nil
	}

	var file struct {
		Passages []Entry `yaml:"passages"`
	}
	path := filepath.Join(s.tenantsDir, tenantID, "config", "knowledge.yaml")
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read knowledge file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse knowledge file: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[tenantID]; ok {
		return existing, nil
	}
	s.entries[tenantID] = file.Passages
	return file.Passages, nil
}

func (s *StaticSearcher) Search(_ context.Context, tenantID, query string) ([]gateways.Passage, error) {
	entries, err := s.load(tenantID)
	if err != nil {
		return nil, err
	}
	terms := keywords(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var out []gateways.Passage
	for i, e := range entries {
		words := keywords(e.Text)
		hits := 0
		for t := range terms {
			if words[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", tenantID, i)
		}
		out = append(out, gateways.Passage{
			ID:     id,
			Text:   e.Text,
			Source: e.Source,
			Score:  float32(hits) / float32(len(terms)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > s.topK {
		out = out[:s.topK]
	}
	return out, nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true, "does": true,
	"you": true, "your": true, "i": true, "my": true, "me": true, "to": true, "of": true,
	"and": true, "or": true, "what": true, "how": true, "can": true, "for": true, "in": true,
	"on": true, "it": true, "we": true, "us": true, "have": true, "with": true, "there": true,
}

func keywords(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out[strings.TrimSuffix(f, "s")] = true
	}
	return out
}

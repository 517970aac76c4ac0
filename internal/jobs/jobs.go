package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"

	"github.com/xenwave/formpilot/api/schemas"
)

// CompanyBatch groups one company's job postings for paced processing.
type CompanyBatch struct {
	Company string              `json:"company"`
	Jobs    []schemas.JobTarget `json:"jobs"`
}

// jobEntry is one element of a jobs file. The file accepts either bare URL
// strings or objects with company and title context.
type jobEntry struct {
	URL     string `json:"url"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
	Source  string `json:"source,omitempty"`
}

func (e *jobEntry) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		e.URL = url
		return nil
	}
	type alias jobEntry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = jobEntry(a)
	return nil
}

// LoadFile reads a JSON job queue. Every target gets an ID so results can
// be reported against it.
func LoadFile(path string) ([]schemas.JobTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var entries []jobEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", path, err)
	}

	targets := make([]schemas.JobTarget, 0, len(entries))
	for _, e := range entries {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			continue
		}
		targets = append(targets, schemas.JobTarget{
			ID:      uuid.NewString(),
			URL:     url,
			Company: e.Company,
			Title:   e.Title,
			Source:  e.Source,
		})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("jobs file %s contains no job URLs", path)
	}
	return targets, nil
}

// companyFile is the on-disk shape of one company's file in a directory
// queue: {"company": "...", "jobs": ["url", {"url": "...", "title": "..."}]}.
type companyFile struct {
	Company string     `json:"company"`
	Jobs    []jobEntry `json:"jobs"`
}

// LoadDir scans a directory of per-company JSON files and returns one batch
// per company, in filename order. Files with no usable jobs are skipped.
func LoadDir(dir string) ([]CompanyBatch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read company dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var batches []CompanyBatch
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read company file %s: %w", path, err)
		}
		var cf companyFile
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("parse company file %s: %w", path, err)
		}

		company := cf.Company
		if company == "" {
			company = strings.TrimSuffix(name, ".json")
		}
		var batch CompanyBatch
		batch.Company = company
		for _, e := range cf.Jobs {
			url := strings.TrimSpace(e.URL)
			if url == "" {
				continue
			}
			batch.Jobs = append(batch.Jobs, schemas.JobTarget{
				ID:      uuid.NewString(),
				URL:     url,
				Company: company,
				Title:   e.Title,
				Source:  e.Source,
			})
		}
		if len(batch.Jobs) > 0 {
			batches = append(batches, batch)
		}
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("company dir %s contains no job URLs", dir)
	}
	return batches, nil
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// ErrEmptyPlan is returned when a plan source holds no subtasks.
var ErrEmptyPlan = errors.New("plan has no subtasks")

// listMarker strips "1. ", "2) ", "- " and "* " prefixes from plan lines.
var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s+`)

// readPlan loads a plan from path. YAML and JSON files hold a list of
// subtasks or a {subtasks: [...]} object; any other file, or "-" for stdin,
// holds one subtask per line.
func readPlan(path string, stdin io.Reader) (models.Plan, error) {
	var (
		texts []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("read plan: %w", rerr)
		}
		texts, err = parseStructuredPlan(data)
	default:
		r := stdin
		if path != "-" {
			f, oerr := os.Open(path)
			if oerr != nil {
				return nil, fmt.Errorf("read plan: %w", oerr)
			}
			defer f.Close()
			r = f
		}
		texts, err = parseLinePlan(r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return newPlan(texts)
}

func newPlan(texts []string) (models.Plan, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyPlan
	}
	return models.NewPlan(texts), nil
}

func parseStructuredPlan(data []byte) ([]string, error) {
	var doc struct {
		Subtasks []string `yaml:"subtasks"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Subtasks) > 0 {
		return cleanTexts(doc.Subtasks), nil
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("expected a list of subtasks: %w", err)
	}
	return cleanTexts(list), nil
}

func parseLinePlan(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, listMarker.ReplaceAllString(line, ""))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func cleanTexts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/models"
)

// maxLineSize bounds a single JSON-lines record.
const maxLineSize = 1 << 20

// ReadMentions decodes mentions from r. The input is either one JSON array of
// mentions or JSON lines with one mention per line; blank lines are skipped.
// Records are decoded but not validated; the pipeline does that per record.
func ReadMentions(r io.Reader) ([]models.FacilityMention, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []models.FacilityMention{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mentions: %w", err)
	}

	if first == '[' {
		var mentions []models.FacilityMention
		if err := json.NewDecoder(br).Decode(&mentions); err != nil {
			return nil, fmt.Errorf("decode mention array: %w", err)
		}
		if mentions == nil {
			mentions = []models.FacilityMention{}
		}
		return mentions, nil
	}

	mentions := []models.FacilityMention{}
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var m models.FacilityMention
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode mention on line %d: %w", line, err)
		}
		mentions = append(mentions, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mentions: %w", err)
	}
	return mentions, nil
}

// ReadMentionsFile opens path and calls ReadMentions.
func ReadMentionsFile(path string) ([]models.FacilityMention, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open mentions file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadMentions(f)
}

// ReadTargetFile decodes one target study from a JSON file.
func ReadTargetFile(path string) (models.TargetStudy, error) {
	var target models.TargetStudy
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return target, fmt.Errorf("read target study: %w", err)
	}
	if err := json.Unmarshal(data, &target); err != nil {
		return target, fmt.Errorf("decode target study: %w", err)
	}
	return target, nil
}

// peekNonSpace skips leading whitespace and returns the next byte without
// consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

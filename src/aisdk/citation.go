package aisdk

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CitationKind is the provenance of a citation.
type CitationKind string

const (
	CitationWeb          CitationKind = "web_search_result_location"
	CitationCharRange    CitationKind = "char_location"
	CitationPageRange    CitationKind = "page_location"
	CitationBlockRange   CitationKind = "content_block_location"
	CitationSearchResult CitationKind = "search_result_location"
)

// citedTextKeyLen bounds how much cited text participates in document keys.
const citedTextKeyLen = 50

// Citation is the closed set of provenance references.
type Citation interface {
	Kind() CitationKind
	// Key identifies the citation for deduplication.
	Key() string
	isCitation()
}

// WebCitation points at a web result.
type WebCitation struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	CitedText string `json:"cited_text,omitempty"`
}

// DocumentRef is shared by the document citation kinds.
type DocumentRef struct {
	DocumentIndex int    `json:"document_index"`
	DocumentTitle string `json:"document_title,omitempty"`
	CitedText     string `json:"cited_text"`
}

// CharRangeCitation cites a character span of a plain text document.
type CharRangeCitation struct {
	DocumentRef
	StartCharIndex int `json:"start_char_index"`
	EndCharIndex   int `json:"end_char_index"`
}

// PageRangeCitation cites pages of a PDF document.
type PageRangeCitation struct {
	DocumentRef
	StartPageNumber int `json:"start_page_number"`
	EndPageNumber   int `json:"end_page_number"`
}

// BlockRangeCitation cites content blocks of a custom document.
type BlockRangeCitation struct {
	DocumentRef
	StartBlockIndex int `json:"start_block_index"`
	EndBlockIndex   int `json:"end_block_index"`
}

// SearchResultCitation cites a block range of a search result.
type SearchResultCitation struct {
	Source            string `json:"source"`
	Title             string `json:"title,omitempty"`
	CitedText         string `json:"cited_text,omitempty"`
	SearchResultIndex int    `json:"search_result_index"`
	StartBlockIndex   int    `json:"start_block_index"`
	EndBlockIndex     int    `json:"end_block_index"`
}

func (WebCitation) Kind() CitationKind          { return CitationWeb }
func (CharRangeCitation) Kind() CitationKind    { return CitationCharRange }
func (PageRangeCitation) Kind() CitationKind    { return CitationPageRange }
func (BlockRangeCitation) Kind() CitationKind   { return CitationBlockRange }
func (SearchResultCitation) Kind() CitationKind { return CitationSearchResult }

func (c WebCitation) Key() string          { return "web:" + c.URL }
func (c SearchResultCitation) Key() string { return "search:" + c.Source }
func (c CharRangeCitation) Key() string    { return documentKey(c.Kind(), c.DocumentRef) }
func (c PageRangeCitation) Key() string    { return documentKey(c.Kind(), c.DocumentRef) }
func (c BlockRangeCitation) Key() string   { return documentKey(c.Kind(), c.DocumentRef) }

func (WebCitation) isCitation()          {}
func (CharRangeCitation) isCitation()    {}
func (PageRangeCitation) isCitation()    {}
func (BlockRangeCitation) isCitation()   {}
func (SearchResultCitation) isCitation() {}

func documentKey(kind CitationKind, ref DocumentRef) string {
	text := []rune(ref.CitedText)
	if len(text) > citedTextKeyLen {
		text = text[:citedTextKeyLen]
	}
	return string(kind) + ":" + strconv.Itoa(ref.DocumentIndex) + ":" + string(text)
}

// DecodeCitation parses one citation object, dispatching on its "type"
// field. Objects without a type but with a url are treated as web results.
func DecodeCitation(raw []byte) (Citation, error) {
	var head struct {
		Type CitationKind `json:"type"`
		URL  string       `json:"url"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse citation: %w", err)
	}
	kind := head.Type
	if kind == "" || kind == "web" || kind == "url_citation" {
		if head.URL == "" {
			return nil, fmt.Errorf("citation has neither type nor url")
		}
		kind = CitationWeb
	}

	var (
		c   Citation
		err error
	)
	switch kind {
	case CitationWeb:
		var v WebCitation
		err = json.Unmarshal(raw, &v)
		if err == nil && v.URL == "" {
			err = fmt.Errorf("web citation has no url")
		}
		c = v
	case CitationCharRange:
		var v CharRangeCitation
		err = json.Unmarshal(raw, &v)
		c = v
	case CitationPageRange:
		var v PageRangeCitation
		err = json.Unmarshal(raw, &v)
		c = v
	case CitationBlockRange:
		var v BlockRangeCitation
		err = json.Unmarshal(raw, &v)
		c = v
	case CitationSearchResult:
		var v SearchResultCitation
		err = json.Unmarshal(raw, &v)
		if err == nil && v.Source == "" {
			err = fmt.Errorf("search result citation has no source")
		}
		c = v
	default:
		return nil, fmt.Errorf("unknown citation type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s citation: %w", kind, err)
	}
	return c, nil
}

// EncodeCitation serializes c with its type tag.
func EncodeCitation(c Citation) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = c.Kind()
	return json.Marshal(fields)
}

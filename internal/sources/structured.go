package sources

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/tidwall/gjson"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

// StructuredExtractor derives the signature by applying a path expression to
// a parsed structured body: a gjson path for JSON, an XPath for XML.
type StructuredExtractor struct{}

var _ Extractor = (*StructuredExtractor)(nil)

// Extract applies the configured path expression to the body
func (*StructuredExtractor) Extract(art *fetch.Artifact, cfg *config.ExtractionConfig) (string, error) {
	switch {
	case cfg.JSONPath != "":
		return extractJSONPath(art.Body, cfg.JSONPath)
	case cfg.XPath != "":
		return extractXPath(art.Body, cfg.XPath)
	default:
		return "", extractionErrorf("no jsonPath or xpath configured")
	}
}

func extractJSONPath(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", extractionErrorf("body is not valid JSON")
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return "", extractionErrorf("json path %q not found", path)
	}

	signature := strings.TrimSpace(result.String())
	if signature == "" {
		return "", extractionErrorf("json path %q yielded an empty signature", path)
	}
	return signature, nil
}

func extractXPath(body []byte, expr string) (string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return "", &ExtractionError{Reason: "body is not valid XML", Err: err}
	}

	node, err := xmlquery.Query(doc, expr)
	if err != nil {
		return "", &ExtractionError{Reason: "invalid xpath expression", Err: err}
	}
	if node == nil {
		return "", extractionErrorf("xpath %q not found", expr)
	}

	signature := strings.TrimSpace(node.InnerText())
	if signature == "" {
		return "", extractionErrorf("xpath %q yielded an empty signature", expr)
	}
	return signature, nil
}

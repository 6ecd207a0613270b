// Package report assembles the final summary of a finished job from its
// task results, and derives short history summaries from the markdown
// reports agents produce.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/overseer/internal/models"
)

// maxSummaryLen caps extracted summaries so history listings stay short.
const maxSummaryLen = 200

// Build aggregates task results into a FinalReport. startedAt is when
// execution began; the duration is measured against now.
func Build(results []models.TaskResult, startedAt time.Time) *models.FinalReport {
	r := &models.FinalReport{
		TotalTasks: len(results),
		DurationMS: time.Since(startedAt).Milliseconds(),
	}
	for _, result := range results {
		if result.Status == models.ResultSuccess {
			r.CompletedTasks++
		} else {
			r.FailedTasks++
		}
	}
	r.Summary = fmt.Sprintf("%d of %d tasks completed", r.CompletedTasks, r.TotalTasks)
	if r.FailedTasks > 0 {
		r.Summary += fmt.Sprintf(", %d failed", r.FailedTasks)
	}
	return r
}

// Summarize extracts a one-line summary from an agent's markdown report:
// the first heading if one exists, otherwise the first paragraph, trimmed
// and capped. Returns "" for empty input.
func Summarize(markdown string) string {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var heading, paragraph string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Heading:
			if heading == "" {
				heading = nodeText(n, source)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if paragraph == "" {
				paragraph = nodeText(n, source)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return clip(strings.TrimSpace(markdown))
	}

	if heading != "" {
		return clip(heading)
	}
	return clip(paragraph)
}

// nodeText collects the raw text content beneath a node.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteString(nodeText(c, source))
	}
	return strings.TrimSpace(b.String())
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxSummaryLen {
		return strings.TrimSpace(s[:maxSummaryLen]) + "..."
	}
	return s
}

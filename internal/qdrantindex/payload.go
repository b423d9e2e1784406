package qdrantindex

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

func toPayload(doc apptype.Document, seq int64) map[string]any {
	tags := make([]any, len(doc.Tags))
	for i, t := range doc.Tags {
		tags[i] = t
	}
	meta := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	return map[string]any{
		"doc_id":   doc.ID,
		"title":    doc.Title,
		"content":  doc.Content,
		"category": doc.Category,
		"tags":     tags,
		"metadata": meta,
		"seq":      seq,
	}
}

func fromPayload(p map[string]*qdrant.Value) (apptype.Document, int64) {
	doc := apptype.Document{
		ID:       p["doc_id"].GetStringValue(),
		Title:    p["title"].GetStringValue(),
		Content:  p["content"].GetStringValue(),
		Category: p["category"].GetStringValue(),
	}
	for _, v := range p["tags"].GetListValue().GetValues() {
		doc.Tags = append(doc.Tags, v.GetStringValue())
	}
	if fields := p["metadata"].GetStructValue().GetFields(); len(fields) > 0 {
		doc.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			doc.Metadata[k] = v.GetStringValue()
		}
	}
	return doc, p["seq"].GetIntegerValue()
}

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"vectorproxy/internal/ingest"
	"vectorproxy/internal/vector"
)

// Datasource is the optional context attached to every point of a batch.
type Datasource struct {
	ID        string
	TableName string
}

// pointNamespace scopes deterministic point ids.
var pointNamespace = uuid.MustParse("3f1c6f0a-8a52-4d8e-9c1e-5b7f2f4d1a60")

// textKeys are tried in order when picking the text to embed.
var textKeys = []string{"page_content", "text", "content"}

type PointEmbedder struct {
	embedder   TextEmbedder
	dimensions int
}

// NewPointEmbedder builds points from records using e. When dimensions is
// positive, every returned vector must have exactly that length.
func NewPointEmbedder(e TextEmbedder, dimensions int) *PointEmbedder {
	return &PointEmbedder{embedder: e, dimensions: dimensions}
}

// Embed returns one point per record or an error and no points.
func (p *PointEmbedder) Embed(ctx context.Context, records []ingest.Record, ds Datasource) ([]vector.Point, error) {
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = Content(r)
	}

	slog.DebugContext(ctx, "embedding batch", "records", len(records))
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrCountMismatch, len(records), len(vectors))
	}

	points := make([]vector.Point, len(records))
	for i, r := range records {
		vec := vectors[i]
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: record %d", ErrEmptyVector, i)
		}
		if p.dimensions > 0 && len(vec) != p.dimensions {
			return nil, fmt.Errorf("%w: record %d has %d, want %d", ErrDimensionMismatch, i, len(vec), p.dimensions)
		}

		payload := r.Payload()
		if shadowed := reservedKeys(r); len(shadowed) > 0 {
			slog.WarnContext(ctx, "record fields use reserved payload keys and were replaced",
				"record_index", i, "keys", shadowed)
		}
		enrichUnstructured(r, payload)
		payload[vector.PayloadContent] = texts[i]
		payload[vector.PayloadRecordIndex] = i
		if ds.ID != "" {
			payload[vector.PayloadDatasourceID] = ds.ID
		}
		if ds.TableName != "" {
			payload[vector.PayloadTableName] = ds.TableName
		}

		points[i] = vector.Point{
			ID:      PointID(ds.ID, i, texts[i]),
			Vector:  vec,
			Payload: payload,
		}
	}
	return points, nil
}

// PointID derives a stable id so that replaying a batch overwrites points.
func PointID(datasourceID string, index int, content string) string {
	name := datasourceID + "\x00" + strconv.Itoa(index) + "\x00" + content
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// Content picks the text to embed for r.
func Content(r ingest.Record) string {
	for _, k := range textKeys {
		if v, ok := r[k]; ok && v.IsText() && strings.TrimSpace(v.Text) != "" {
			return v.Text
		}
	}

	var b strings.Builder
	for _, k := range r.Keys() {
		v := r[k]
		if v.IsNull() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v.String())
	}
	return b.String()
}

type elementMetadata struct {
	Filetype   string   `json:"filetype"`
	Languages  []string `json:"languages"`
	PageNumber *int     `json:"page_number"`
	Filename   string   `json:"filename"`
}

// enrichUnstructured adds the ac_* keys for records shaped like an
// Unstructured.io element. Records without type and element_id are left alone.
func enrichUnstructured(r ingest.Record, payload map[string]any) {
	typ, ok1 := r["type"]
	id, ok2 := r["element_id"]
	if !ok1 || !ok2 || !typ.IsText() || !id.IsText() {
		return
	}

	payload["ac_type"] = typ.Text
	payload["ac_element_id"] = id.Text
	if _, taken := payload["page_content"]; !taken {
		if text, ok := r["text"]; ok && text.IsText() {
			payload["page_content"] = text.Text
		}
	}

	meta, ok := r["metadata"]
	if !ok || !meta.IsText() {
		return
	}
	var m elementMetadata
	if err := json.Unmarshal([]byte(meta.Text), &m); err != nil {
		return
	}
	if m.Filetype != "" {
		payload["ac_filetype"] = m.Filetype
	}
	if len(m.Languages) > 0 {
		payload["ac_languages"] = strings.Join(m.Languages, ",")
	}
	if m.PageNumber != nil {
		payload["ac_page_number"] = *m.PageNumber
	}
	if _, taken := payload["filename"]; !taken && m.Filename != "" {
		payload["filename"] = m.Filename
	}
}

// reservedKeys returns the record's keys that fall under the pipeline's
// payload prefix, sorted.
func reservedKeys(r ingest.Record) []string {
	var keys []string
	for _, k := range r.Keys() {
		if strings.HasPrefix(k, vector.ReservedPrefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

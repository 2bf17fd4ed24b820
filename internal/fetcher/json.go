package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/mobility-stats/internal/model"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		// Expect opening bracket
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		// Consume closing bracket
		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// LoadJSONRecords reads a JSON array of survey records. Elements shaped like
// a stored record ({"id", "campaign_id", "data", "typo", "created_at",
// "updated_at"}) are taken as is; any other object is treated as the data
// document of a record without typology. Strings are NFC normalised.
func LoadJSONRecords(ctx context.Context, r io.Reader) ([]model.Record, error) {
	ch, errCh := DecodeJSONArray[map[string]any](ctx, r)

	recs := []model.Record{}
	for doc := range ch {
		recs = append(recs, toRecord(doc))
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "json: load records")
	}
	return recs, nil
}

func toRecord(doc map[string]any) model.Record {
	data, hasData := doc["data"].(map[string]any)
	typo, hasTypo := doc["typo"].(map[string]any)
	if !hasData && !hasTypo {
		return model.Record{Data: normalizeDoc(doc)}
	}

	rec := model.Record{
		Data: normalizeDoc(data),
		Typo: normalizeDoc(typo),
	}
	rec.ID, _ = doc["id"].(string)
	rec.CampaignID, _ = doc["campaign_id"].(string)
	rec.CreatedAt = parseTime(doc["created_at"])
	rec.UpdatedAt = parseTime(doc["updated_at"])
	return rec
}

// normalizeDoc applies NFC to every string in place.
func normalizeDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	stack := []any{doc}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := cur.(type) {
		case map[string]any:
			for k, child := range v {
				if s, ok := child.(string); ok {
					v[k] = norm.NFC.String(s)
				} else {
					stack = append(stack, child)
				}
			}
		case []any:
			for i, child := range v {
				if s, ok := child.(string); ok {
					v[i] = norm.NFC.String(s)
				} else {
					stack = append(stack, child)
				}
			}
		}
	}
	return doc
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

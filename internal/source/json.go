package source

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/prodocs/harvest-cli/internal/model"
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

// jsonRecord is one element of a structured list-of-records input.
type jsonRecord struct {
	URL         string `json:"url"`
	ModelNumber string `json:"model_number"`
	Label       string `json:"label"`
}

// readJSON parses a JSON array of records into WorkItems. Records without a
// url field are skipped.
func readJSON(ctx context.Context, path, defaultLabel string) ([]model.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open file")
	}
	defer f.Close() //nolint:errcheck

	recCh, errCh := DecodeJSONArray[jsonRecord](ctx, f)

	var items []model.WorkItem
	for rec := range recCh {
		u := strings.TrimSpace(rec.URL)
		if u == "" {
			continue
		}
		label := defaultLabel
		if rec.ModelNumber != "" {
			label = rec.ModelNumber
		} else if rec.Label != "" {
			label = rec.Label
		}
		items = append(items, model.WorkItem{Label: label, URL: u})
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	return items, nil
}

package pipeline

import (
	"encoding/json"
	"fmt"

	jobrt "github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
)

// decodePayload re-marshals the loosely-typed payload map into the typed
// Payload. A job with an undecodable payload fails immediately; the submit
// path should have rejected it.
func decodePayload(ctx *jobrt.Context) (*Payload, error) {
	raw := ctx.Payload()
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, apierr.Input("encode_payload", fmt.Errorf("encode payload: %w", err))
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, apierr.Input("decode_payload", fmt.Errorf("decode payload: %w", err))
	}
	if p.Source.Kind == "" {
		return nil, apierr.Input("missing_source", fmt.Errorf("payload has no source"))
	}
	return &p, nil
}

// decodeOutput converts a stage output to its typed form. Outputs are typed
// in-process but become generic maps after a JSON round-trip through the job
// row; the re-marshal handles both.
func decodeOutput(v any, dst any) bool {
	if v == nil {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false
	}
	return true
}

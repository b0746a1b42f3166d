// Package bind decodes a JSON request body and validates it.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/validate"
)

// JSON decodes r.Body into dest, capped at MAX_BODY_BYTES (default 1 MB), then
// validates it. Malformed or oversized bodies return err; rule failures return
// errs with a nil err.
func JSON(r *http.Request, dest any) (errs map[string]string, err error) {
	limit := int64(config.Int("MAX_BODY_BYTES", 1<<20))
	r.Body = http.MaxBytesReader(nil, r.Body, limit)

	if err = json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if errs = validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

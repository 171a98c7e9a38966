package salesforce

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// decodeJSON decodes a REST response body. Describe payloads for the
// pipeline custom fields come through here; go-salesforce handles decoding
// for the CRUD surface itself.
func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return eris.Wrap(err, "decode json")
	}
	return nil
}

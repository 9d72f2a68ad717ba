package planner

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Cursor marks the first entry of the next page. Current clients send the
// entry's id and creation time. Legacy clients only know the creation time;
// such a cursor has an empty ID and is encoded as a bare timestamp.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Legacy reports whether the cursor carries only a timestamp.
func (c Cursor) Legacy() bool {
	return c.ID == ""
}

// MarshalJSON encodes a legacy cursor as an RFC 3339 string and any other
// cursor as an {"id", "createdAt"} object.
func (c Cursor) MarshalJSON() ([]byte, error) {
	if c.Legacy() {
		return json.Marshal(c.CreatedAt)
	}
	type object Cursor
	return json.Marshal(object(c))
}

// UnmarshalJSON accepts both encodings.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var createdAt time.Time
		if err := json.Unmarshal(data, &createdAt); err != nil {
			return errors.WithSecondaryError(bookmarkx.ErrInvalidCursor, err)
		}
		*c = Cursor{CreatedAt: createdAt}
		return nil
	}

	type object Cursor
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return errors.WithSecondaryError(bookmarkx.ErrInvalidCursor, err)
	}
	*c = Cursor(o)
	return nil
}

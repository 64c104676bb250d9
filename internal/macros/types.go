package macros

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Macro is a persisted macro. MID is the shortcut key it is bound to, if any.
type Macro struct {
	ID   int64  `json:"id"`
	MID  *int64 `json:"mid"`
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Row is a macro as the editor holds it. Nil fields were not sent.
type Row struct {
	ID   *int64  `json:"id,omitempty"`
	MID  *int64  `json:"mid,omitempty"`
	Name *string `json:"name,omitempty" validate:"omitempty,max=256"`
	SQL  *string `json:"sql,omitempty"`
}

// Changeset is what one editing session produced.
type Changeset struct {
	Changed []Row `json:"changed" validate:"dive"`
	Deleted []Row `json:"deleted" validate:"dive"`
	Added   []Row `json:"added" validate:"dive"`
}

type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one instruction for the persistence backend.
//
// An Op with Tombstone set deletes the macro ID. Otherwise it is an upsert:
// with a non-zero ID it updates (or creates under that id), without one it
// creates a new macro.
type Op struct {
	ID        *int64
	MID       *int64
	Name      *string
	SQL       *string
	Tombstone bool
}

func (o Op) Kind() OpKind {
	if o.Tombstone {
		return OpDelete
	}
	if o.ID == nil || *o.ID == 0 {
		return OpCreate
	}
	return OpUpdate
}

type upsertJSON struct {
	ID   *int64  `json:"id,omitempty"`
	MID  *int64  `json:"mid,omitempty"`
	Name *string `json:"name,omitempty"`
	SQL  *string `json:"sql,omitempty"`
}

type tombstoneJSON struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
	SQL  *string `json:"sql"`
}

// MarshalJSON writes a tombstone as {"id":N,"name":null,"sql":null} and an
// upsert with only the fields it carries.
func (o Op) MarshalJSON() ([]byte, error) {
	if o.Tombstone {
		return json.Marshal(tombstoneJSON{ID: o.ID})
	}
	return json.Marshal(upsertJSON{ID: o.ID, MID: o.MID, Name: o.Name, SQL: o.SQL})
}

// UnmarshalJSON reads an op. An explicit "name": null marks a tombstone.
func (o *Op) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID   *int64          `json:"id"`
		MID  *int64          `json:"mid"`
		Name json.RawMessage `json:"name"`
		SQL  json.RawMessage `json:"sql"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	name, nameNull, err := optionalString(aux.Name)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	sql, _, err := optionalString(aux.SQL)
	if err != nil {
		return fmt.Errorf("sql: %w", err)
	}
	*o = Op{ID: aux.ID, MID: aux.MID, Name: name, SQL: sql, Tombstone: nameNull}
	if o.Tombstone {
		o.MID, o.Name, o.SQL = nil, nil, nil
	}
	return nil
}

// optionalString decodes a raw field, reporting whether it was an explicit null.
func optionalString(raw json.RawMessage) (*string, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, err
	}
	return &s, false, nil
}

func int64p(v int64) *int64 {
	return &v
}

func stringp(v string) *string {
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return int64p(*p)
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	return stringp(*p)
}

package macros

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func row(mid int64, name string) Row {
	r := Row{Name: stringp(name)}
	if mid != 0 {
		r.MID = int64p(mid)
	}
	return r
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want Violation
	}{
		{"empty", nil, NoViolation},
		{"distinct", []Row{row(1, "a"), row(2, "b")}, NoViolation},
		{"duplicate key", []Row{row(1, "a"), row(1, "b")}, DuplicateKey},
		{"unbound keys ignored", []Row{row(0, "a"), row(0, "b")}, NoViolation},
		{"duplicate name ignores case", []Row{row(1, "Macro"), row(2, "mACRO")}, DuplicateName},
		{"key wins over name", []Row{row(3, "x"), row(3, "X")}, DuplicateKey},
		{"two unnamed rows", []Row{{MID: int64p(1)}, {MID: int64p(2)}}, DuplicateName},
		{"one unnamed row", []Row{{MID: int64p(1)}, row(2, "b")}, NoViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.rows))
		})
	}
}

func TestViolationMessage(t *testing.T) {
	assert.Equal(t, "Key must be unique.", DuplicateKey.Message())
	assert.Equal(t, "Name must be unique.", DuplicateName.Message())
	assert.Empty(t, NoViolation.Message())
}

func TestKeys(t *testing.T) {
	list := Keys()
	assert.Len(t, list, 22)
	assert.Equal(t, Key{ID: 1, Label: "Alt + Shift + F1"}, list[0])
	assert.Equal(t, Key{ID: 22, Label: "Ctrl + Shift + 0"}, list[21])
	assert.True(t, KnownKey(22))
	assert.False(t, KnownKey(23))
	assert.False(t, KnownKey(0))
}

func TestNewName(t *testing.T) {
	assert.Equal(t, "New Macro", NewName(nil))
	assert.Equal(t, "New Macro 2", NewName([]string{"new macro"}))
	assert.Equal(t, "New Macro 3", NewName([]string{"New Macro", "New Macro 2"}))
}

package macros

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baselineOne() []Macro {
	return []Macro{{ID: 1, MID: int64p(5), Name: "a", SQL: "select 1"}}
}

func TestReconcileEditedExisting(t *testing.T) {
	ops, err := Reconcile(baselineOne(), Changeset{
		Changed: []Row{{ID: int64p(1), Name: stringp("b")}},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)

	out, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"mid":5,"name":"b","sql":"select 1"}]`, string(out))
	assert.Equal(t, OpUpdate, ops[0].Kind())
}

func TestReconcileEmptyEditKeepsBaseline(t *testing.T) {
	ops, err := Reconcile(baselineOne(), Changeset{
		Changed: []Row{{ID: int64p(1), Name: stringp(""), SQL: stringp(""), MID: int64p(0)}},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "a", *ops[0].Name)
	assert.Equal(t, "select 1", *ops[0].SQL)
	assert.Equal(t, int64(5), *ops[0].MID)
}

func TestReconcileEditOverridesEveryField(t *testing.T) {
	ops, err := Reconcile(baselineOne(), Changeset{
		Changed: []Row{{ID: int64p(1), MID: int64p(7), Name: stringp("z"), SQL: stringp("select 9")}},
	})
	require.NoError(t, err)
	out, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"mid":7,"name":"z","sql":"select 9"}]`, string(out))
}

func TestReconcileChangedWithoutIDUsesKey(t *testing.T) {
	ops, err := Reconcile(nil, Changeset{
		Changed: []Row{{MID: int64p(3), Name: stringp("n"), SQL: stringp("select 3")}},
	})
	require.NoError(t, err)
	out, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3,"mid":3,"name":"n","sql":"select 3"}]`, string(out))
}

func TestReconcileDelete(t *testing.T) {
	ops, err := Reconcile(baselineOne(), Changeset{
		Deleted: []Row{{ID: int64p(1), Name: stringp("a")}},
	})
	require.NoError(t, err)
	out, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":null,"sql":null}]`, string(out))
	assert.Equal(t, OpDelete, ops[0].Kind())
}

func TestReconcileAddPromotesClientID(t *testing.T) {
	ops, err := Reconcile(nil, Changeset{
		Added: []Row{{ID: int64p(42), Name: stringp("c"), SQL: stringp("select 2")}},
	})
	require.NoError(t, err)
	out, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"mid":42,"name":"c","sql":"select 2"}]`, string(out))
	assert.Nil(t, ops[0].ID)
	assert.Equal(t, OpCreate, ops[0].Kind())
}

func TestReconcileAddWithoutClientIDKeepsKey(t *testing.T) {
	ops, err := Reconcile(nil, Changeset{
		Added: []Row{{MID: int64p(4), Name: stringp("c"), SQL: stringp("select 2")}},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Nil(t, ops[0].ID)
	assert.Equal(t, int64(4), *ops[0].MID)
}

func TestReconcileAddWithZeroIDIsUntouched(t *testing.T) {
	ops, err := Reconcile(nil, Changeset{
		Added: []Row{{ID: int64p(0), MID: int64p(4), Name: stringp("c"), SQL: stringp("s")}},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.NotNil(t, ops[0].ID)
	assert.Equal(t, int64(0), *ops[0].ID)
	assert.Equal(t, int64(4), *ops[0].MID)
	assert.Equal(t, OpCreate, ops[0].Kind())
}

func TestReconcileOrdersGroups(t *testing.T) {
	baseline := []Macro{
		{ID: 1, Name: "a", SQL: "select 1"},
		{ID: 2, Name: "b", SQL: "select 2"},
		{ID: 3, Name: "c", SQL: "select 3"},
	}
	ops, err := Reconcile(baseline, Changeset{
		Added:   []Row{{ID: int64p(9), Name: stringp("x"), SQL: stringp("x")}, {ID: int64p(8), Name: stringp("y"), SQL: stringp("y")}},
		Deleted: []Row{{ID: int64p(3)}, {ID: int64p(1)}},
		Changed: []Row{{ID: int64p(2), Name: stringp("bb")}},
	})
	require.NoError(t, err)
	kinds := make([]OpKind, 0, len(ops))
	for _, op := range ops {
		kinds = append(kinds, op.Kind())
	}
	assert.Equal(t, []OpKind{OpUpdate, OpDelete, OpDelete, OpCreate, OpCreate}, kinds)
	assert.Equal(t, int64(3), *ops[1].ID)
	assert.Equal(t, int64(1), *ops[2].ID)
	assert.Equal(t, int64(9), *ops[3].MID)
	assert.Equal(t, int64(8), *ops[4].MID)
}

func TestReconcileUnknownID(t *testing.T) {
	_, err := Reconcile(baselineOne(), Changeset{
		Changed: []Row{{ID: int64p(99), Name: stringp("x")}},
	})
	assert.ErrorIs(t, err, ErrUnknownMacro)
}

func TestReconcileDoesNotAliasInput(t *testing.T) {
	added := []Row{{ID: int64p(42), Name: stringp("c")}}
	ops, err := Reconcile(nil, Changeset{Added: added})
	require.NoError(t, err)
	*ops[0].MID = 7
	assert.Equal(t, int64(42), *added[0].ID)
	assert.Nil(t, added[0].MID)
}

func TestReconcileEmpty(t *testing.T) {
	ops, err := Reconcile(baselineOne(), Changeset{})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestOpUnmarshal(t *testing.T) {
	var ops []Op
	err := json.Unmarshal([]byte(`[
		{"id":1,"name":null,"sql":null},
		{"id":2,"mid":3,"name":"n","sql":"s"},
		{"mid":4,"name":"m","sql":"q"}
	]`), &ops)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, OpDelete, ops[0].Kind())
	assert.Equal(t, int64(1), *ops[0].ID)
	assert.Equal(t, OpUpdate, ops[1].Kind())
	assert.Equal(t, "n", *ops[1].Name)
	assert.Equal(t, OpCreate, ops[2].Kind())
	assert.Equal(t, int64(4), *ops[2].MID)
}

func TestWorking(t *testing.T) {
	baseline := []Macro{
		{ID: 1, MID: int64p(1), Name: "a", SQL: "select 1"},
		{ID: 2, MID: int64p(2), Name: "b", SQL: "select 2"},
	}
	rows := Working(baseline, Changeset{
		Changed: []Row{{ID: int64p(1), Name: stringp("A2")}, {MID: int64p(5), Name: stringp("new")}},
		Deleted: []Row{{ID: int64p(2)}},
		Added:   []Row{{ID: int64p(77), MID: int64p(6), Name: stringp("added")}},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, "A2", *rows[0].Name)
	assert.Equal(t, "select 1", *rows[0].SQL)
	assert.Equal(t, "new", *rows[1].Name)
	assert.Equal(t, "added", *rows[2].Name)
	assert.Equal(t, int64(77), *rows[2].MID)
	assert.Nil(t, rows[2].ID)
}

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/camwatch/internal/router"
)

func decode(t *testing.T, raw string) router.Envelope {
	t.Helper()
	env, err := router.Decode([]byte(raw))
	require.NoError(t, err)
	return env
}

func TestFilter_DuplicateAlertAcceptedOnce(t *testing.T) {
	f := New(0)
	raw := `{"type":"alert","data":{"id":7}}`

	assert.True(t, f.AcceptEnvelope(decode(t, raw)))
	assert.False(t, f.AcceptEnvelope(decode(t, raw)))
	assert.Equal(t, 1, f.Len())
}

func TestFilter_Key(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantID int64
		wantOK bool
	}{
		{"bare id", `{"type":"alert","data":{"id":7}}`, 7, true},
		{"created", `{"type":"alert","data":{"action":"created","alert":{"id":12}}}`, 12, true},
		{"updated passes", `{"type":"alert","data":{"action":"updated","alert":{"id":12}}}`, 0, false},
		{"deleted passes", `{"type":"alert","data":{"action":"deleted","alert":{"id":12}}}`, 0, false},
		{"no id", `{"type":"alert","data":{"action":"created"}}`, 0, false},
		{"not an alert", `{"type":"frame","data":{"id":7}}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Key(decode(t, tt.raw))
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestFilter_UpdatesAlwaysPass(t *testing.T) {
	f := New(0)
	created := decode(t, `{"type":"alert","data":{"action":"created","alert":{"id":3}}}`)
	updated := decode(t, `{"type":"alert","data":{"action":"updated","alert":{"id":3,"acknowledged":true}}}`)

	assert.True(t, f.AcceptEnvelope(created))
	assert.True(t, f.AcceptEnvelope(updated))
	assert.True(t, f.AcceptEnvelope(updated))
	assert.False(t, f.AcceptEnvelope(created))
}

func TestFilter_EvictsOldest(t *testing.T) {
	f := New(3)
	for _, id := range []int64{1, 2, 3} {
		require.True(t, f.Accept(id))
	}

	assert.True(t, f.Accept(4), "new id evicts the oldest")
	assert.False(t, f.Seen(1))
	assert.True(t, f.Seen(2))
	assert.Equal(t, 3, f.Len())

	assert.True(t, f.Accept(1), "evicted id is accepted again")
	assert.False(t, f.Seen(2))
	assert.False(t, f.Accept(4))
}

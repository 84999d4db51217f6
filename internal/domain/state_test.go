package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateFilter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want StateSet
	}{
		{in: "", want: nil},
		{in: "todos", want: nil},
		{in: "EN_COLA", want: StateSet{StateApproved, StateReprint}},
		{in: "impreso, en_cola", want: StateSet{StateApproved, StateReprint, StatePrinted}},
		{in: "LISTO,LISTO", want: StateSet{StateReady}},
	}
	for _, tc := range cases {
		got, err := ParseStateFilter(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseStateFilter("RECHAZADO")
	require.Error(t, err)
}

func TestStateSet_MatchesAndSubset(t *testing.T) {
	t.Parallel()

	var all StateSet
	assert.True(t, all.Matches(StateDelivered))
	assert.True(t, QueueStates().Matches(StateReprint))
	assert.False(t, QueueStates().Matches(StatePending))

	assert.True(t, StateSet{StateApproved}.SubsetOf(QueueStates()))
	assert.False(t, StateSet{StateApproved, StatePrinted}.SubsetOf(QueueStates()))
}

func TestStateCounts_InQueue(t *testing.T) {
	t.Parallel()

	c := StateCounts{StateApproved: 3, StateReprint: 2, StatePending: 4}
	assert.Equal(t, 5, c.InQueue())
	assert.Equal(t, 9, c.Total())
}

func TestParseRecordKind(t *testing.T) {
	t.Parallel()

	k, err := ParseRecordKind("parqueo")
	require.NoError(t, err)
	assert.Equal(t, KindParking, k)
	assert.Equal(t, "parking_records", k.Collection())
	assert.False(t, k.HasRole())

	k, err = ParseRecordKind("membership")
	require.NoError(t, err)
	assert.True(t, k.HasRole())
	assert.Equal(t, "M-000042", FormatCardNumber(k, 42))

	_, err = ParseRecordKind("tenant")
	require.Error(t, err)
}

func TestApplicantRecord_MatchesSearch(t *testing.T) {
	t.Parallel()

	email := "ana@example.com"
	r := ApplicantRecord{FirstNames: "Ana Lucía", LastNames: "Pérez", DocumentNumber: "1234567890123", Email: &email}
	assert.True(t, r.MatchesSearch(""))
	assert.True(t, r.MatchesSearch("ana pérez"))
	assert.True(t, r.MatchesSearch("4567"))
	assert.True(t, r.MatchesSearch("EXAMPLE.COM"))
	assert.False(t, r.MatchesSearch("ana gomez"))
}

func TestNewRejection_KeepsReasonVerbatim(t *testing.T) {
	t.Parallel()

	rec := ApplicantRecord{ID: "r-1", Kind: KindParking, FirstNames: "Luis"}
	reason := "  La fotografía no cumple con los requisitos.\n"
	rj := NewRejection("a-1", rec, reason, rec.CreatedAt)
	assert.Equal(t, reason, rj.Reason)
	assert.Equal(t, KindParking, rj.Origin)
	assert.Equal(t, RecordID("r-1"), rj.RecordID)
}

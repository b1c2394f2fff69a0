package leads

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_CoercesValues(t *testing.T) {
	l := persisted("a", "Acme", testNow)
	l.Status = StatusClosed

	require.NoError(t, l.Apply(FieldDealValue, json.Number("1250.5")))
	assert.Equal(t, 1250.5, *l.DealValue)
	require.NoError(t, l.Apply(FieldDealValue, "99"))
	assert.Equal(t, 99.0, *l.DealValue)
	require.NoError(t, l.Apply(FieldDealValue, ""))
	assert.Nil(t, l.DealValue)

	require.NoError(t, l.Apply(FieldSeen, true))
	assert.True(t, l.Seen)
	require.ErrorIs(t, l.Apply(FieldSeen, "yes"), ErrInvalidValue)

	require.NoError(t, l.Apply(FieldOtherSource, nil))
	assert.Nil(t, l.OtherSource)
}

func TestApply_LeavesLeadUntouchedOnError(t *testing.T) {
	l := persisted("a", "Acme", testNow)
	before := l.clone()

	require.ErrorIs(t, l.Apply(FieldLeadDate, "15/03/2024"), ErrInvalidValue)
	require.ErrorIs(t, l.Apply(FieldLeadDate, ""), ErrInvalidValue)
	require.ErrorIs(t, l.Apply(FieldDealValue, -1.0), ErrInvalidValue)
	assert.Equal(t, before, l)
}

func TestApply_FieldCoupling(t *testing.T) {
	cases := []struct {
		name  string
		setup Patch
		field Field
		value any
		ok    bool
	}{
		{"deal value needs closed", nil, FieldDealValue, 10.0, false},
		{"deal value when closed", Patch{FieldStatus: "closed"}, FieldDealValue, 10.0, true},
		{"reason lost needs lost", nil, FieldReasonLost, "price", false},
		{"reason lost when lost", Patch{FieldStatus: "lost"}, FieldReasonLost, "price", true},
		{"other reason needs reason other", Patch{FieldStatus: "lost", FieldReasonLost: "price"}, FieldOtherReasonLost, "moved", false},
		{"other reason when reason other", Patch{FieldStatus: "lost", FieldReasonLost: "other"}, FieldOtherReasonLost, "moved", true},
		{"other source needs source other", nil, FieldOtherSource, "Referral", false},
		{"other source when other", Patch{FieldLeadSource: "other"}, FieldOtherSource, "Referral", true},
		{"follow up date needs flag", nil, FieldFollowUpDate, "2024-04-01", false},
		{"follow up date with flag", Patch{FieldFollowUpNeeded: true}, FieldFollowUpDate, "2024-04-01", true},
		{"clearing is always allowed", nil, FieldDealValue, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := persisted("a", "Acme", testNow)
			require.NoError(t, l.ApplyPatch(tc.setup))
			err := l.Apply(tc.field, tc.value)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrFieldNotApplicable)
		})
	}
}

func TestApply_StatusChangeKeepsOutcomeFields(t *testing.T) {
	l := persisted("a", "Acme", testNow)
	require.NoError(t, l.ApplyPatch(Patch{FieldStatus: "closed", FieldDealValue: 300.0}))
	require.NoError(t, l.Apply(FieldStatus, "interested"))
	require.NotNil(t, l.DealValue)
	assert.Equal(t, 300.0, *l.DealValue)
}

func TestApplyPatch_GateBeforeGated(t *testing.T) {
	l := persisted("a", "Acme", testNow)
	err := l.ApplyPatch(Patch{FieldReasonLost: "other", FieldOtherReasonLost: "moved away", FieldStatus: "lost"})
	require.NoError(t, err)
	assert.Equal(t, StatusLost, l.Status)
	assert.Equal(t, ReasonOther, *l.ReasonLost)
	assert.Equal(t, "moved away", *l.OtherReasonLost)

	require.ErrorIs(t, l.ApplyPatch(Patch{"bogus": 1}), ErrUnknownField)
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" salesperson_name ")
	require.NoError(t, err)
	assert.Equal(t, FieldSalespersonName, f)
	assert.True(t, f.Promotes())
	assert.False(t, FieldCity.Promotes())

	_, err = ParseField("id")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestValue_NormalizesOptionals(t *testing.T) {
	l := persisted("a", "Acme", testNow)
	assert.Nil(t, l.Value(FieldScreenshotURL))
	assert.Nil(t, l.Value(FieldDealValue))
	assert.Equal(t, "new", l.Value(FieldStatus))
	assert.Equal(t, false, l.Value(FieldSeen))
	assert.Nil(t, l.Value("bogus"))
}

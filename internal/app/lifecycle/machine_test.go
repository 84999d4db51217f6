package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

func TestParseOperation(t *testing.T) {
	t.Parallel()

	op, err := ParseOperation("Confirm-Print")
	require.NoError(t, err)
	assert.Equal(t, OpConfirmPrint, op)

	_, err = ParseOperation("print")
	assert.Error(t, err)
}

func TestRule_WithdrawTargetsDiffer(t *testing.T) {
	t.Parallel()

	rule, ok := RuleFor(OpWithdraw)
	require.True(t, ok)

	fromApproved, _, err := rule.Plan(domain.StateApproved)
	require.NoError(t, err)
	fromReprint, _, err := rule.Plan(domain.StateReprint)
	require.NoError(t, err)

	assert.Equal(t, domain.StatePending, fromApproved)
	assert.Equal(t, domain.StatePrinted, fromReprint)
}

func TestRule_ReprintAcceptsFinishedCards(t *testing.T) {
	t.Parallel()

	rule, _ := RuleFor(OpReprint)
	assert.Equal(t, domain.StateSet{domain.StatePrinted, domain.StateReady, domain.StateDelivered}, rule.Sources())
}

func TestRule_PlanRefusals(t *testing.T) {
	t.Parallel()

	rule, _ := RuleFor(OpMarkDelivered)
	_, _, err := rule.Plan(domain.StatePending)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatePending, te.From)
	assert.Equal(t, OpMarkDelivered, te.Op)
}

func TestRuleFor_ReturnsCopy(t *testing.T) {
	t.Parallel()

	r, _ := RuleFor(OpConfirmPrint)
	delete(r.Moves, domain.StateApproved)

	again, _ := RuleFor(OpConfirmPrint)
	assert.Len(t, again.Moves, 2)

	_, ok := RuleFor(OpReject)
	assert.False(t, ok)
}

func TestRule_Restrict(t *testing.T) {
	t.Parallel()

	r, _ := RuleFor(OpConfirmPrint)
	only := r.Restrict(domain.StateSet{domain.StateReprint})
	assert.Equal(t, domain.StateSet{domain.StateReprint}, only.Sources())
	assert.Equal(t, r.Sources(), r.Restrict(nil).Sources())
}

func TestPolicyFromSetting(t *testing.T) {
	t.Parallel()

	p, err := PolicyFromSetting("")
	require.NoError(t, err)
	k, ok := p.KindFor(OpMarkReady)
	assert.True(t, ok)
	assert.Equal(t, notifier.KindReady, k)
	_, ok = p.KindFor(OpConfirmPrint)
	assert.False(t, ok)

	p, err = PolicyFromSetting("confirm_print")
	require.NoError(t, err)
	_, ok = p.KindFor(OpMarkReady)
	assert.False(t, ok)
	_, ok = p.KindFor(OpConfirmPrint)
	assert.True(t, ok)

	_, err = PolicyFromSetting("withdraw")
	assert.Error(t, err)
	_, err = PolicyFromSetting("nope")
	assert.Error(t, err)

	k, ok = p.KindFor(OpReject)
	assert.True(t, ok)
	assert.Equal(t, notifier.KindRejected, k)
}

package payment

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/m3rciful/guideshop/core/telegram/callbacks"
	"github.com/m3rciful/guideshop/internal/shop"
)

// Decision is an admin button press on a receipt handshake.
type Decision string

const (
	Approve        Decision = "approve"
	Reject         Decision = "reject"
	ConfirmApprove Decision = "confirm_approve"
	ConfirmReject  Decision = "confirm_reject"
	// Reconsider is the "no" answer to either confirmation; it re-sends the decision prompt.
	Reconsider Decision = "reconsider"
)

var decisionUniques = map[Decision]string{
	Approve:        "hs_ok",
	Reject:         "hs_no",
	ConfirmApprove: "hs_yes_ok",
	ConfirmReject:  "hs_yes_no",
	Reconsider:     "hs_back",
}

// Unique returns the callback unique for d.
func (d Decision) Unique() string { return decisionUniques[d] }

// Decisions lists every decision.
func Decisions() []Decision {
	return []Decision{Approve, Reject, ConfirmApprove, ConfirmReject, Reconsider}
}

// ErrStale matches decisions that no longer apply to an open handshake.
var ErrStale = errors.New("stale decision")

// StaleDecision explains why a decision was ignored.
type StaleDecision struct {
	Reason string
}

func (e *StaleDecision) Error() string        { return "payment: stale decision: " + e.Reason }
func (e *StaleDecision) Is(target error) bool { return target == ErrStale }

func stale(reason string) error { return &StaleDecision{Reason: reason} }

// DecisionData is the callback payload identifying a handshake.
func DecisionData(buyerID int64, token string) string {
	return callbacks.JoinPayload(strconv.FormatInt(buyerID, 10), token)
}

// ParseDecisionData is the inverse of DecisionData. Malformed data is stale.
func ParseDecisionData(data string) (int64, string, error) {
	parts, err := callbacks.SplitPayload(data, 2)
	if err != nil || parts[1] == "" {
		return 0, "", stale(fmt.Sprintf("malformed data %q", data))
	}
	id, token := parts[0], parts[1]
	buyer, err := strconv.ParseInt(id, 10, 64)
	if err != nil || buyer <= 0 {
		return 0, "", stale(fmt.Sprintf("malformed buyer id %q", id))
	}
	return buyer, token, nil
}

func decisionKeyboard(buyerID int64, token string) *shop.Keyboard {
	data := DecisionData(buyerID, token)
	return &shop.Keyboard{Inline: [][]shop.Button{
		{{Text: textApprove, Unique: Approve.Unique(), Data: data}},
		{{Text: textReject, Unique: Reject.Unique(), Data: data}},
	}}
}

func confirmKeyboard(confirm Decision, buyerID int64, token string) *shop.Keyboard {
	data := DecisionData(buyerID, token)
	return &shop.Keyboard{Inline: [][]shop.Button{{
		{Text: textYes, Unique: confirm.Unique(), Data: data},
		{Text: textNo, Unique: Reconsider.Unique(), Data: data},
	}}}
}

func payKeyboard() *shop.Keyboard {
	return &shop.Keyboard{Inline: [][]shop.Button{
		{{Text: textPayStars, Unique: UniquePayStars}},
		{{Text: textPayTransfer, Unique: UniquePayTransfer}},
	}}
}

// Callback uniques of the payment method buttons.
const (
	UniquePayStars    = "pay_stars"
	UniquePayTransfer = "pay_transfer"
)
